package core

// Endpoint is one leg of a media pipeline. The coordinator only ever holds
// endpoints by handle; all media resources live behind the engine.
type Endpoint interface {
	// GenerateAnswer consumes a remote SDP offer and returns the local answer.
	GenerateAnswer(sdpOffer string) (string, error)
	// AddCandidate applies a remote ICE candidate.
	AddCandidate(Candidate) error
	// OnCandidate sets a callback for locally gathered ICE candidates.
	// Must be set before GatherCandidates.
	OnCandidate(func(Candidate))
	// GatherCandidates starts delivering local candidates to the callback.
	GatherCandidates() error
}

// Pipeline is an opaque media pipeline handle. Release is idempotent.
type Pipeline interface {
	Release()
}

// MediaEngine creates and owns media pipelines for bound call pairs and for
// playback of recorded calls.
type MediaEngine interface {
	// CreatePairedPipeline builds one pipeline with a caller and a callee leg.
	// Media received on one leg is forwarded to the other.
	CreatePairedPipeline(caller, callee string) (Pipeline, Endpoint, Endpoint, error)
	// StartRecording begins recording both legs of a paired pipeline.
	StartRecording(Pipeline) error
	// CreatePlaybackPipeline streams the recorded call of user back to the
	// requester. onEndOfStream fires once when the recording is exhausted;
	// it must be safe to fire after the requester is already gone.
	CreatePlaybackPipeline(user string, onEndOfStream func()) (Pipeline, Endpoint, error)
}
