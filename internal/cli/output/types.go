package output

import "time"

// DomainInfo is the JSON shape of a registry domain.
type DomainInfo struct {
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Aliases     []string        `json:"aliases,omitempty"`
	MultiTenant bool            `json:"multi_tenant"`
	Subdomains  []SubdomainInfo `json:"subdomains,omitempty"`
}

// SubdomainInfo is the JSON shape of a registry subdomain.
type SubdomainInfo struct {
	Code               string `json:"code"`
	Name               string `json:"name"`
	Description        string `json:"description,omitempty"`
	NextEntitySequence int    `json:"next_entity_sequence"`
	NextReadEntity     int    `json:"next_read_entity"`
	Entities           int    `json:"entities"`
	ReadEntities       int    `json:"read_entities"`
}

// EntityInfo is the JSON shape of an entity registration.
type EntityInfo struct {
	Name       string            `json:"name"`
	TableCode  string            `json:"table_code"`
	Domain     string            `json:"domain"`
	Subdomain  string            `json:"subdomain"`
	AssignedAt time.Time         `json:"assigned_at"`
	Artifacts  map[string]string `json:"artifacts,omitempty"`
	Path       string            `json:"path,omitempty"`
}

// CodeInfo is the JSON shape of a decomposed code.
type CodeInfo struct {
	Code      string `json:"code"`
	Canonical string `json:"canonical"`
	Legacy    bool   `json:"legacy"`
	Layer     string `json:"layer"`
	LayerName string `json:"layer_name"`
	Domain    string `json:"domain"`
	Subdomain string `json:"subdomain"`
	Entity    string `json:"entity"`
	Variant   string `json:"variant"`
	Sequence  string `json:"sequence"`
}

// PathInfo is the JSON shape of a generated path.
type PathInfo struct {
	Code      string   `json:"code"`
	Path      string   `json:"path"`
	Dir       string   `json:"dir"`
	Filename  string   `json:"filename"`
	Kind      string   `json:"kind"`
	Fallbacks []string `json:"fallbacks,omitempty"`
}

// AllocationInfo is the JSON shape of one allocation result.
type AllocationInfo struct {
	Scope  string `json:"scope"`
	Code   string `json:"code,omitempty"`
	Value  int    `json:"value,omitempty"`
	Entity string `json:"entity,omitempty"`
	Path   string `json:"path,omitempty"`
}

// IssueInfo is the JSON shape of a validation issue.
type IssueInfo struct {
	Severity string `json:"severity"`
	Path     string `json:"path"`
	Message  string `json:"message"`
}

// ValidateOutput is the JSON result of registry validation.
type ValidateOutput struct {
	Valid  bool        `json:"valid"`
	Issues []IssueInfo `json:"issues"`
}

// GeneratedFile is the JSON shape of one written file.
type GeneratedFile struct {
	Code    string `json:"code"`
	Entity  string `json:"entity"`
	Path    string `json:"path"`
	Written bool   `json:"written"`
}

// GenerateOutput is the JSON result of a generate run.
type GenerateOutput struct {
	DryRun bool            `json:"dry_run"`
	Root   string          `json:"root"`
	Files  []GeneratedFile `json:"files"`
	Error  string          `json:"error,omitempty"`
}
