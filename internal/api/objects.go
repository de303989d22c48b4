package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/pingnode/internal/api/models"
	"github.com/smazurov/pingnode/internal/dm"
)

type instancePathInput struct {
	OID uint16 `path:"oid" example:"12359" doc:"Object id"`
	IID uint16 `path:"iid" example:"0" doc:"Instance id"`
}

type resourcePathInput struct {
	OID uint16 `path:"oid" example:"12359" doc:"Object id"`
	IID uint16 `path:"iid" example:"0" doc:"Instance id"`
	RID uint16 `path:"rid" example:"0" doc:"Resource id"`
}

type writeResourceInput struct {
	resourcePathInput
	Body struct {
		Value any `json:"value" doc:"New value (string or integer)"`
	}
}

type writeInstanceInput struct {
	instancePathInput
	Body struct {
		Values map[string]any `json:"values" doc:"New values keyed by resource id"`
	}
}

// registerObjectRoutes registers the object model endpoints.
func (s *Server) registerObjectRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-objects",
		Method:      http.MethodGet,
		Path:        "/api/objects",
		Summary:     "List Objects",
		Description: "List registered objects with their instances and resource tables",
		Tags:        []string{"objects"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.ObjectsResponse, error) {
		resp := &models.ObjectsResponse{}
		resp.Body.Objects = []models.ObjectData{}
		for _, obj := range s.registry.Objects() {
			data := models.ObjectData{ID: uint16(obj.ID())}
			for _, iid := range obj.Instances() {
				data.Instances = append(data.Instances, uint16(iid))
			}
			for _, def := range obj.Resources() {
				data.Resources = append(data.Resources, models.ResourceInfo{
					ID:         uint16(def.ID),
					Name:       def.Name,
					Kind:       string(def.Kind),
					Operations: def.Ops.String(),
				})
			}
			resp.Body.Objects = append(resp.Body.Objects, data)
		}
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "read-instance",
		Method:      http.MethodGet,
		Path:        "/api/objects/{oid}/{iid}",
		Summary:     "Read Instance",
		Description: "Read every readable resource of an object instance",
		Tags:        []string{"objects"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *instancePathInput) (*models.InstanceResponse, error) {
		oid, iid := dm.ObjectID(input.OID), dm.InstanceID(input.IID)
		values, err := s.registry.ReadInstance(oid, iid)
		if err != nil {
			return nil, toHTTPError(err)
		}
		names := s.resourceNames(oid)

		rids := make([]dm.ResourceID, 0, len(values))
		for rid := range values {
			rids = append(rids, rid)
		}
		sort.Slice(rids, func(i, j int) bool { return rids[i] < rids[j] })

		resp := &models.InstanceResponse{}
		resp.Body.ObjectID = input.OID
		resp.Body.InstanceID = input.IID
		for _, rid := range rids {
			resp.Body.Resources = append(resp.Body.Resources,
				resourceValue(dm.Path{OID: oid, IID: iid, RID: rid}, names[rid], values[rid]))
		}
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "read-resource",
		Method:      http.MethodGet,
		Path:        "/api/objects/{oid}/{iid}/{rid}",
		Summary:     "Read Resource",
		Description: "Read a single resource value",
		Tags:        []string{"objects"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 405},
	}, func(_ context.Context, input *resourcePathInput) (*models.ResourceResponse, error) {
		p := input.path()
		v, err := s.registry.Read(p)
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &models.ResourceResponse{Body: resourceValue(p, s.resourceNames(p.OID)[p.RID], v)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "write-resource",
		Method:      http.MethodPut,
		Path:        "/api/objects/{oid}/{iid}/{rid}",
		Summary:     "Write Resource",
		Description: "Write a single resource inside a transaction",
		Tags:        []string{"objects"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404, 405, 500},
	}, func(_ context.Context, input *writeResourceInput) (*models.ResourceResponse, error) {
		p := input.path()
		v, err := dm.FromJSON(input.Body.Value)
		if err != nil {
			return nil, toHTTPError(err)
		}
		if err := s.registry.Write(p, v); err != nil {
			return nil, toHTTPError(err)
		}
		return &models.ResourceResponse{Body: resourceValue(p, s.resourceNames(p.OID)[p.RID], s.storedValue(p, v))}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "write-instance",
		Method:      http.MethodPut,
		Path:        "/api/objects/{oid}/{iid}",
		Summary:     "Write Instance",
		Description: "Write several resources in one transaction. Either every value is applied or none is.",
		Tags:        []string{"objects"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404, 405, 500},
	}, func(_ context.Context, input *writeInstanceInput) (*models.InstanceResponse, error) {
		oid, iid := dm.ObjectID(input.OID), dm.InstanceID(input.IID)
		values := make(map[dm.ResourceID]dm.Value, len(input.Body.Values))
		for key, raw := range input.Body.Values {
			rid, err := strconv.ParseUint(key, 10, 16)
			if err != nil {
				return nil, huma.Error400BadRequest(fmt.Sprintf("invalid resource id %q", key))
			}
			v, err := dm.FromJSON(raw)
			if err != nil {
				return nil, toHTTPError(err)
			}
			values[dm.ResourceID(rid)] = v
		}
		if err := s.registry.WriteInstance(oid, iid, values); err != nil {
			return nil, toHTTPError(err)
		}

		names := s.resourceNames(oid)
		resp := &models.InstanceResponse{}
		resp.Body.ObjectID = input.OID
		resp.Body.InstanceID = input.IID
		for rid, v := range values {
			p := dm.Path{OID: oid, IID: iid, RID: rid}
			resp.Body.Resources = append(resp.Body.Resources, resourceValue(p, names[rid], s.storedValue(p, v)))
		}
		sort.Slice(resp.Body.Resources, func(i, j int) bool {
			return resp.Body.Resources[i].ID < resp.Body.Resources[j].ID
		})
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "execute-resource",
		Method:        http.MethodPost,
		Path:          "/api/objects/{oid}/{iid}/{rid}/execute",
		Summary:       "Execute Resource",
		Description:   "Execute a resource. Results are reported through resource change events.",
		Tags:          []string{"objects"},
		Security:      withAuth(),
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{401, 404, 405, 500},
	}, func(_ context.Context, input *resourcePathInput) (*models.ExecuteResponse, error) {
		p := input.path()
		if err := s.registry.Execute(p); err != nil {
			return nil, toHTTPError(err)
		}
		return &models.ExecuteResponse{Body: models.ExecuteData{Path: p.String(), Status: "accepted"}}, nil
	})
}

func (in *resourcePathInput) path() dm.Path {
	return dm.Path{OID: dm.ObjectID(in.OID), IID: dm.InstanceID(in.IID), RID: dm.ResourceID(in.RID)}
}

func (s *Server) resourceNames(oid dm.ObjectID) map[dm.ResourceID]string {
	names := make(map[dm.ResourceID]string)
	obj, err := s.registry.Object(oid)
	if err != nil {
		return names
	}
	for _, def := range obj.Resources() {
		names[def.ID] = def.Name
	}
	return names
}

func resourceValue(p dm.Path, name string, v dm.Value) models.ResourceValue {
	return models.ResourceValue{
		Path:  p.String(),
		ID:    uint16(p.RID),
		Name:  name,
		Value: v.Any(),
	}
}

// toHTTPError maps protocol errors onto HTTP statuses.
func toHTTPError(err error) error {
	var dmErr *dm.Error
	if errors.As(err, &dmErr) {
		return huma.NewError(dmErr.Code.HTTPStatus(), dmErr.Error())
	}
	return huma.Error500InternalServerError("internal error", err)
}

// storedValue reads back a written resource. Write-only resources echo v.
func (s *Server) storedValue(p dm.Path, v dm.Value) dm.Value {
	stored, err := s.registry.Read(p)
	if err != nil {
		return v
	}
	return stored
}
