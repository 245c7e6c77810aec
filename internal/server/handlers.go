package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fraiseql/specql-sub006/internal/pathgen"
	"github.com/fraiseql/specql-sub006/internal/registry"
	"github.com/fraiseql/specql-sub006/internal/state"
	"github.com/fraiseql/specql-sub006/pkg/numbering"
)

func (s *Server) routes(r chi.Router) {
	r.Get("/healthz", s.healthz)
	r.Get("/domains", s.listDomains)
	r.Get("/codes/{code}", s.describeCode)
	r.Get("/paths/{code}", s.generatePath)
	r.Get("/history", s.history)

	r.Post("/sequences/entity", s.assignEntitySequence)
	r.Post("/read-entities", s.assignReadEntity)

	r.Route("/entities", func(r chi.Router) {
		r.Post("/", s.allocateEntity)
		r.Get("/{name}", s.getEntity)
		r.Post("/{name}/functions", s.assignFunction)
		r.Post("/{name}/table-files", s.assignTableFile)
	})
}

type domainResponse struct {
	Code        string              `json:"code"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Aliases     []string            `json:"aliases,omitempty"`
	MultiTenant bool                `json:"multi_tenant"`
	Subdomains  []subdomainResponse `json:"subdomains"`
}

type subdomainResponse struct {
	Code               string `json:"code"`
	Name               string `json:"name"`
	NextEntitySequence int    `json:"next_entity_sequence"`
	NextReadEntity     int    `json:"next_read_entity"`
	Entities           int    `json:"entities"`
}

type entityResponse struct {
	Name      string            `json:"name"`
	TableCode string            `json:"table_code"`
	Domain    string            `json:"domain"`
	Subdomain string            `json:"subdomain"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
}

type codeResponse struct {
	Code      string `json:"code"`
	Layer     string `json:"layer"`
	Domain    string `json:"domain"`
	Subdomain string `json:"subdomain"`
	Entity    int    `json:"entity"`
	Variant   int    `json:"variant"`
	Sequence  int    `json:"sequence"`
	Legacy    bool   `json:"legacy"`
	Owner     string `json:"owner,omitempty"`
}

type pathResponse struct {
	Path      string   `json:"path"`
	Dir       string   `json:"dir"`
	Filename  string   `json:"filename"`
	Kind      string   `json:"kind"`
	Fallbacks []string `json:"fallbacks,omitempty"`
}

type allocateEntityRequest struct {
	Name      string `json:"name"`
	Domain    string `json:"domain"`
	Subdomain string `json:"subdomain"`
	Code      string `json:"code,omitempty"`
}

type scopeRequest struct {
	Domain    string `json:"domain"`
	Subdomain string `json:"subdomain"`
}

type readEntityRequest struct {
	Domain    string `json:"domain"`
	Subdomain string `json:"subdomain"`
	View      string `json:"view"`
	File      int    `json:"file,omitempty"`
}

type artifactRequest struct {
	Action string `json:"action,omitempty"`
	Role   string `json:"role,omitempty"`
}

type codeResult struct {
	Code string `json:"code"`
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Load(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listDomains(w http.ResponseWriter, r *http.Request) {
	reg, err := s.store.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]domainResponse, 0, len(reg.DomainsByCode))
	for _, d := range reg.Domains() {
		dr := domainResponse{
			Code:        d.Code,
			Name:        d.Name,
			Description: d.Description,
			Aliases:     d.Aliases,
			MultiTenant: d.MultiTenant,
			Subdomains:  make([]subdomainResponse, 0, len(d.Subdomains)),
		}
		for _, sd := range d.SortedSubdomains() {
			dr.Subdomains = append(dr.Subdomains, subdomainResponse{
				Code:               sd.Code,
				Name:               sd.Name,
				NextEntitySequence: sd.NextEntitySequence,
				NextReadEntity:     sd.NextReadEntity,
				Entities:           len(sd.Entities),
			})
		}
		out = append(out, dr)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getEntity(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	reg, err := s.store.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	e, ok := reg.GetEntity(name)
	if !ok {
		writeError(w, registry.NewUnknownEntityError(name))
		return
	}
	writeJSON(w, http.StatusOK, entityResponse{
		Name:      e.Name,
		TableCode: e.TableCode,
		Domain:    e.Domain,
		Subdomain: e.Subdomain,
		Artifacts: e.Artifacts,
	})
}

func (s *Server) allocateEntity(w http.ResponseWriter, r *http.Request) {
	var req allocateEntityRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, fmt.Errorf("%w: name is required", errBadRequest))
		return
	}

	if req.Code != "" {
		e, err := s.alloc.RegisterEntity(r.Context(), req.Name, req.Code, req.Domain, req.Subdomain)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, codeResult{Code: e.TableCode})
		return
	}

	code, err := s.alloc.AllocateEntity(r.Context(), req.Name, req.Domain, req.Subdomain)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, codeResult{Code: code.String()})
}

func (s *Server) assignEntitySequence(w http.ResponseWriter, r *http.Request) {
	var req scopeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	seq, err := s.alloc.AssignEntitySequence(r.Context(), req.Domain, req.Subdomain)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"sequence": seq})
}

func (s *Server) assignFunction(w http.ResponseWriter, r *http.Request) {
	var req artifactRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	name := chi.URLParam(r, "name")

	var (
		code numbering.Code
		err  error
	)
	if req.Action != "" {
		code, err = s.alloc.AssignFunction(r.Context(), name, req.Action)
	} else {
		code, err = s.alloc.AssignFunctionSequence(r.Context(), name)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, codeResult{Code: code.String()})
}

func (s *Server) assignTableFile(w http.ResponseWriter, r *http.Request) {
	var req artifactRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	name := chi.URLParam(r, "name")

	var (
		code numbering.Code
		err  error
	)
	if req.Role != "" {
		code, err = s.alloc.AssignTableFile(r.Context(), name, req.Role)
	} else {
		code, err = s.alloc.AssignTableFileSequence(r.Context(), name)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, codeResult{Code: code.String()})
}

func (s *Server) assignReadEntity(w http.ResponseWriter, r *http.Request) {
	var req readEntityRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.View == "" {
		writeError(w, fmt.Errorf("%w: view is required", errBadRequest))
		return
	}

	code, err := s.alloc.AssignReadEntity(r.Context(), req.Domain, req.Subdomain, req.View)
	if err == nil && req.File > 0 {
		code, err = s.alloc.AssignReadFile(r.Context(), req.Domain, req.Subdomain, req.View, req.File)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, codeResult{Code: code.String()})
}

func (s *Server) describeCode(w http.ResponseWriter, r *http.Request) {
	reg, err := s.store.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := numbering.DecomposeWith(reg.CodeEncoding(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	owner, _ := reg.Owner(c)
	writeJSON(w, http.StatusOK, codeResponse{
		Code:      c.String(),
		Layer:     string(c.Layer),
		Domain:    c.DomainKey(),
		Subdomain: c.SubdomainKey(),
		Entity:    c.Entity,
		Variant:   c.Variant,
		Sequence:  c.Canonical().Sequence,
		Legacy:    c.IsLegacy(),
		Owner:     owner,
	})
}

// generatePath resolves the file location of a code. The entity query
// parameter (or its alias name) is the entity, view or function display
// name; kind and ext select an artifact kind other than the layer default.
func (s *Server) generatePath(w http.ResponseWriter, r *http.Request) {
	reg, err := s.store.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	code := chi.URLParam(r, "code")
	c, err := numbering.DecomposeWith(reg.CodeEncoding(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	gen, err := pathgen.ForLayer(c.Layer, reg, pathgen.WithLogger(s.logger))
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	name := q.Get("entity")
	if name == "" {
		name = q.Get("name")
	}
	var fp pathgen.FilePath
	if q.Get("kind") == "" && q.Get("ext") == "" {
		fp, err = gen.GeneratePath(code, name)
	} else {
		var kind pathgen.Kind
		kind, err = queryKind(q.Get("kind"), q.Get("ext"), c.Layer)
		if err == nil {
			fp, err = gen.GenerateArtifactPath(code, name, kind)
		}
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pathResponse{
		Path:      fp.Path,
		Dir:       fp.Dir,
		Filename:  fp.Filename,
		Kind:      fp.Kind.Name,
		Fallbacks: fp.Fallbacks,
	})
}

func queryKind(name, ext string, layer numbering.SchemaLayer) (pathgen.Kind, error) {
	kind := pathgen.DefaultKind(layer)
	if name != "" {
		k, ok := pathgen.KindByName(name)
		if !ok {
			return pathgen.Kind{}, fmt.Errorf("%w: unknown kind %q", errBadRequest, name)
		}
		kind = k
	}
	if ext == "" {
		return kind, nil
	}
	k, err := kind.WithExt(strings.TrimPrefix(ext, "."))
	if err != nil {
		return pathgen.Kind{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return k, nil
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.store.(state.Recorder)
	if !ok {
		writeError(w, errNoHistory)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, fmt.Errorf("%w: limit must be a positive integer", errBadRequest))
			return
		}
		limit = n
	}
	entries, err := rec.History(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []state.Allocation{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
