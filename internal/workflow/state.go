package workflow

import (
	"github.com/alexanderramin/studygen/internal/domain"
	"github.com/alexanderramin/studygen/internal/gateway"
)

// Stage names a step of the workflow that is bounded by one network operation.
type Stage string

const (
	StageUploading   Stage = "uploading"
	StageScanning    Stage = "scanning"
	StageGenerating  Stage = "generating"
	StageLoadingTest Stage = "loading_test"
	StageSubmitting  Stage = "submitting"
)

// GenerationParams are the inputs of a test generation request.
type GenerationParams struct {
	FileRef      string            `json:"file_ref" validate:"required"`
	Prompt       string            `json:"prompt" validate:"required,max=500"`
	Difficulty   domain.Difficulty `json:"difficulty" validate:"required,oneof=easy medium hard"`
	NumQuestions int               `json:"num_questions" validate:"min=1,max=50"`
}

// State is one of the workflow states below. The set is closed.
type State interface {
	Name() string
	isState()
}

type Idle struct{}

type Uploading struct {
	Document domain.Document
}

type Scanning struct {
	FileRef string
}

type Ready struct {
	FileRef string
}

type Generating struct {
	Params GenerationParams
}

type GeneratedTest struct {
	FileRef  string
	TestID   string
	Metadata domain.TestMetadata
}

type LoadingTest struct {
	FileRef  string
	TestID   string
	Metadata domain.TestMetadata
}

type Taking struct {
	Test    *domain.Test
	Answers domain.Answers
}

type Submitting struct {
	Test    *domain.Test
	Answers domain.Answers
}

type Results struct {
	Result domain.SubmissionResult
}

// Failed records a stage failure together with the inputs needed to retry it.
type Failed struct {
	Stage  Stage
	Reason string
	Kind   gateway.Kind
	Inputs Inputs
}

// Inputs are the values a stage was started with. Only the fields relevant
// to the failed stage are set.
type Inputs struct {
	Document domain.Document
	FileRef  string
	Params   GenerationParams
	TestID   string
	Metadata domain.TestMetadata
	Test     *domain.Test
	Answers  domain.Answers
}

func (Idle) Name() string          { return "idle" }
func (Uploading) Name() string     { return "uploading" }
func (Scanning) Name() string      { return "scanning" }
func (Ready) Name() string         { return "ready" }
func (Generating) Name() string    { return "generating" }
func (GeneratedTest) Name() string { return "generated" }
func (LoadingTest) Name() string   { return "loading_test" }
func (Taking) Name() string        { return "taking" }
func (Submitting) Name() string    { return "submitting" }
func (Results) Name() string       { return "results" }
func (Failed) Name() string        { return "failed" }

func (Idle) isState()          {}
func (Uploading) isState()     {}
func (Scanning) isState()      {}
func (Ready) isState()         {}
func (Generating) isState()    {}
func (GeneratedTest) isState() {}
func (LoadingTest) isState()   {}
func (Taking) isState()        {}
func (Submitting) isState()    {}
func (Results) isState()       {}
func (Failed) isState()        {}

// InFlight reports whether s is waiting on a network operation.
func InFlight(s State) bool {
	switch s.(type) {
	case Uploading, Scanning, Generating, LoadingTest, Submitting:
		return true
	}
	return false
}

// resume returns the in-flight state a retry of f re-enters.
func (f Failed) resume() State {
	in := f.Inputs
	switch f.Stage {
	case StageUploading:
		return Uploading{Document: in.Document}
	case StageScanning:
		return Scanning{FileRef: in.FileRef}
	case StageGenerating:
		return Generating{Params: in.Params}
	case StageLoadingTest:
		return LoadingTest{FileRef: in.FileRef, TestID: in.TestID, Metadata: in.Metadata}
	default:
		return Submitting{Test: in.Test, Answers: in.Answers}
	}
}

// Transition is delivered to subscribers after every state change.
type Transition struct {
	InstanceID string
	From       State
	To         State
}
