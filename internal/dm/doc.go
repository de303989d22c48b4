// Package dm is the object-model layer that diagnostic objects plug into.
//
// A remote manager addresses resources by path:
//
//	/{object id}/{instance id}/{resource id}
//
// Objects declare a static resource table with capability tags (read, write,
// execute) and implement read/write/execute plus the transaction hooks. The
// Registry dispatches calls by object id and wraps every write in a
// begin/validate/commit transaction, rolling back on the first failure so a
// multi-resource write is all-or-nothing.
//
// Errors returned across this boundary are *Error values carrying a protocol
// code (4.00, 4.04, 4.05, 5.00) that transports map to their own status codes.
package dm
