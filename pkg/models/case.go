package models

// VendorMode identifies which CAD ecosystem produced a case folder.
type VendorMode string

const (
	ModeShape VendorMode = "shape"
	ModeExo   VendorMode = "exo"
	ModeNone  VendorMode = "none"
)

// ModelEntry is one embedded mesh in the emitted HTML document.
type ModelEntry struct {
	Name        string `json:"name"`
	B64         string `json:"b64"`
	Group       Group  `json:"group"`
	DisplayName string `json:"displayName"`
}

// ProgressEvent crosses the orchestrator/UI boundary. Percent is monotonic
// non-decreasing across one case. CasePath scopes the tick to the candidate
// folder being converted; it is empty for batch-wide events such as the
// final Done summary, which every subscriber receives regardless of the
// case it is scoped to.
type ProgressEvent struct {
	JobID    string       `json:"jobId,omitempty"`
	CasePath string       `json:"casePath,omitempty"`
	Percent  float64      `json:"percent"`
	Message  string       `json:"message"`
	Done     bool         `json:"done,omitempty"`
	Report   *BatchReport `json:"report,omitempty"`
}

// CaseStatus is the disposition of one processed candidate.
type CaseStatus string

const (
	StatusSuccess CaseStatus = "success"
	StatusSkipped CaseStatus = "skipped"
	StatusError   CaseStatus = "error"
	StatusTimeout CaseStatus = "TIMEOUT"
	StatusCrash   CaseStatus = "CRASH"
)

// CaseResult is the single message a case worker reports back to the
// orchestrator. A closed channel without a message implies crash.
type CaseResult struct {
	Status  CaseStatus `json:"status"`
	Payload string     `json:"payload"` // output name on success, reason otherwise
}

// WorkerJob is the job description handed to the isolated case-worker
// process.
type WorkerJob struct {
	JobID         string           `json:"jobId,omitempty"`
	MeshPaths     []string         `json:"meshPaths"`
	OutHTML       string           `json:"outHtml"`
	Folder        string           `json:"folder"`
	Mode          VendorMode       `json:"mode"`
	LogoB64       string           `json:"logoB64,omitempty"`
	GroupOverride map[string]Group `json:"groupOverride,omitempty"`
}

// BatchReport summarizes one orchestrator run.
type BatchReport struct {
	JobID      string                `json:"jobId"`
	Root       string                `json:"root"`
	Candidates int                   `json:"candidates"`
	Outcomes   map[string]CaseResult `json:"outcomes"` // keyed by candidate folder
}
