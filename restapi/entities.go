package restapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sharedcode/livepers"
	"github.com/sharedcode/livepers/location"
	"github.com/sharedcode/livepers/reqscope"
)

var (
	errBadRequest = errors.New("bad request")
	errNotLocal   = errors.New("entity is owned by another node")
	errNotRemote  = errors.New("entity is owned by this node")
)

// EntityView is the JSON rendering of a handle.
type EntityView struct {
	ID   livepers.ID   `json:"id"`
	Kind string        `json:"kind"`
	Node string        `json:"node,omitempty"`
	Data livepers.Data `json:"data"`
}

// CreateRequest is the body of POST /entities. When ID is empty a new ID of type Initial is
// minted on this node.
type CreateRequest struct {
	ID      livepers.ID    `json:"id"`
	Initial string         `json:"initial"`
	ClassID string         `json:"class_id"`
	Fields  map[string]any `json:"fields"`
}

func viewOf(h livepers.Handle) EntityView {
	v := EntityView{
		ID:   h.ID(),
		Kind: h.Kind().String(),
		Data: h.Entity().Serialize(),
	}
	if r, ok := livepers.AsRemote(h); ok {
		v.Node = r.Node()
	}
	return v
}

func label(c *gin.Context) string {
	return fmt.Sprintf("%s %s", c.Request.Method, c.Request.URL.Path)
}

// inScope runs fn in a request scope and waits for the resulting flush. The response is
// written only after the flush so write-back failures are reported to the caller.
func (s *Server) inScope(c *gin.Context, status int, fn func(ctx context.Context) (any, error)) {
	var body any
	err := reqscope.RunAndWait(c.Request.Context(), s.service, label(c), func(ctx context.Context) error {
		var err error
		body, err = fn(ctx)
		return err
	})
	if err != nil {
		c.IndentedJSON(statusOf(err), gin.H{"message": err.Error()})
		return
	}
	if body == nil {
		c.Status(status)
		return
	}
	c.IndentedJSON(status, body)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, livepers.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errNotLocal), errors.Is(err, errNotRemote):
		return http.StatusConflict
	case errors.Is(err, livepers.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, location.ErrNoForwarder):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

// ListEntities godoc
// @Summary ListEntities returns the IDs of the live entities.
// @Schemes
// @Description ListEntities responds with the IDs of the locally owned entities currently loaded.
// @Tags Entities
// @Produce json
// @Success 200 {object} []string
// @Router /entities [get]
// @Security Bearer
func (s *Server) ListEntities(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.service.CachedIDs())
}

// GetEntity godoc
// @Summary GetEntity returns the entity with the given ID, loading it if needed.
// @Schemes
// @Description GetEntity responds with the entity as JSON; kind tells whether this node owns it.
// @Tags Entities
// @Produce json
// @Param			id	path		string		true	"ID of the entity"    minlength(1)
// @Failure 404 {object} map[string]any
// @Success 200 {object} restapi.EntityView
// @Router /entities/{id} [get]
// @Security Bearer
func (s *Server) GetEntity(c *gin.Context) {
	id := livepers.ID(c.Param("id"))
	s.inScope(c, http.StatusOK, func(ctx context.Context) (any, error) {
		h, err := s.service.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return viewOf(h), nil
	})
}

// CreateEntity godoc
// @Summary CreateEntity adds a new locally owned entity.
// @Schemes
// @Description CreateEntity adds the entity and responds once it was written back. An ID is minted when none is given.
// @Tags Entities
// @Accept json
// @Produce json
// @Param			entity	body		restapi.CreateRequest		true	"Entity to add"
// @Failure 400 {object} map[string]any
// @Success 201 {object} restapi.EntityView
// @Router /entities [post]
// @Security Bearer
func (s *Server) CreateEntity(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if req.ID.IsNil() && req.Initial == "" {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": "either id or initial is required"})
		return
	}
	s.inScope(c, http.StatusCreated, func(ctx context.Context) (any, error) {
		d := make(livepers.Data, len(req.Fields)+2)
		for k, v := range req.Fields {
			if livepers.IsReservedKey(k) {
				return nil, fmt.Errorf("%w: field %q is reserved", errBadRequest, k)
			}
			d[k] = v
		}
		if req.ClassID != "" {
			d[livepers.KeyClassID] = req.ClassID
		}
		var e *livepers.Entity
		if req.ID.IsNil() {
			e = livepers.NewEntity(req.Initial, s.options.Node, d)
		} else {
			d[livepers.KeyID] = string(req.ID)
			e = livepers.FromData(d)
		}
		return viewOf(s.service.Add(ctx, e)), nil
	})
}

// PatchEntity godoc
// @Summary PatchEntity sets fields of a locally owned entity.
// @Schemes
// @Description PatchEntity sets the fields of the body on the entity; a null value removes the field.
// @Tags Entities
// @Accept json
// @Produce json
// @Param			id	path		string		true	"ID of the entity"    minlength(1)
// @Param			fields	body		map[string]any		true	"Fields to set"
// @Failure 400 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Success 200 {object} restapi.EntityView
// @Router /entities/{id} [patch]
// @Security Bearer
func (s *Server) PatchEntity(c *gin.Context) {
	id := livepers.ID(c.Param("id"))
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	for k := range patch {
		if livepers.IsReservedKey(k) {
			c.IndentedJSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("field %q is reserved", k)})
			return
		}
	}
	s.inScope(c, http.StatusOK, func(ctx context.Context) (any, error) {
		l, err := s.local(ctx, id)
		if err != nil {
			return nil, err
		}
		l.Update(ctx, func(fields map[string]any) {
			for k, v := range patch {
				if v == nil {
					delete(fields, k)
					continue
				}
				fields[k] = v
			}
		})
		return viewOf(l), nil
	})
}

// DeleteEntity godoc
// @Summary DeleteEntity deletes a locally owned entity.
// @Schemes
// @Description DeleteEntity marks the entity deleted; it is removed from storage when the request ends.
// @Tags Entities
// @Param			id	path		string		true	"ID of the entity"    minlength(1)
// @Failure 404 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Success 204
// @Router /entities/{id} [delete]
// @Security Bearer
func (s *Server) DeleteEntity(c *gin.Context) {
	id := livepers.ID(c.Param("id"))
	s.inScope(c, http.StatusNoContent, func(ctx context.Context) (any, error) {
		l, err := s.local(ctx, id)
		if err != nil {
			return nil, err
		}
		l.MarkDeleted(ctx)
		return nil, nil
	})
}

// CallEntity godoc
// @Summary CallEntity forwards a method call to the node owning a remote entity.
// @Schemes
// @Description CallEntity forwards the call and responds with its result. The body is the JSON array of arguments.
// @Tags Entities
// @Accept json
// @Produce json
// @Param			id	path		string		true	"ID of the entity"    minlength(1)
// @Param			method	path		string		true	"Method to call"
// @Param			args	body		[]any		false	"Arguments"
// @Failure 409 {object} map[string]any
// @Failure 501 {object} map[string]any
// @Success 200 {object} map[string]any
// @Router /entities/{id}/call/{method} [post]
// @Security Bearer
func (s *Server) CallEntity(c *gin.Context) {
	id := livepers.ID(c.Param("id"))
	method := c.Param("method")
	var args []any
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&args); err != nil {
			c.IndentedJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
	}
	s.inScope(c, http.StatusOK, func(ctx context.Context) (any, error) {
		h, err := s.service.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		r, ok := livepers.AsRemote(h)
		if !ok {
			return nil, fmt.Errorf("call %s on %s: %w", method, id, errNotRemote)
		}
		result, err := r.Call(ctx, method, args...)
		if err != nil {
			return nil, err
		}
		return gin.H{"result": result}, nil
	})
}

// Stats godoc
// @Summary Stats returns the node and the number of live entities.
// @Tags Stats
// @Produce json
// @Success 200 {object} map[string]any
// @Router /stats [get]
// @Security Bearer
func (s *Server) Stats(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, gin.H{
		"node":          s.options.Node,
		"live_entities": s.service.Len(),
	})
}

func (s *Server) local(ctx context.Context, id livepers.ID) (livepers.LocalHandle, error) {
	h, err := s.service.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	l, ok := livepers.AsLocal(h)
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, errNotLocal)
	}
	return l, nil
}
