package types

// SDPType is the role of a session description.
type SDPType string

const (
	SDPOffer  SDPType = "offer"
	SDPAnswer SDPType = "answer"
)

// SessionDescription is an SDP blob with its role.
type SessionDescription struct {
	Type SDPType `json:"type"`
	SDP  string  `json:"sdp"`
}

// RecordStatus is the optional status field of a signaling record.
type RecordStatus string

// RecordRejected marks a call the callee refused.
const RecordRejected RecordStatus = "rejected"

// CallRecord is the shared signaling document for one call.
type CallRecord struct {
	ID       CallID              `json:"id"`
	CallerID UserID              `json:"callerId"`
	CalleeID UserID              `json:"calleeId"`
	CallType CallType            `json:"callType,omitempty"`
	Offer    SessionDescription  `json:"offer"`
	Answer   *SessionDescription `json:"answer,omitempty"`
	Status   RecordStatus        `json:"status,omitempty"`
}

// CallUpdate is a partial write merged into an existing record. Nil fields
// are left untouched.
type CallUpdate struct {
	Answer *SessionDescription `json:"answer,omitempty"`
	Status *RecordStatus       `json:"status,omitempty"`
}

// Apply merges u into r.
func (u CallUpdate) Apply(r *CallRecord) {
	if u.Answer != nil {
		a := *u.Answer
		r.Answer = &a
	}
	if u.Status != nil {
		r.Status = *u.Status
	}
}

// ICECandidate is a trickled connectivity candidate.
type ICECandidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// CandidateSide names the candidate sub-collection of a record.
type CandidateSide string

const (
	CallerCandidates CandidateSide = "callerCandidates"
	AnswerCandidates CandidateSide = "answerCandidates"
)

// Valid reports whether s names a known sub-collection.
func (s CandidateSide) Valid() bool {
	return s == CallerCandidates || s == AnswerCandidates
}

// ChangeKind describes how a watched document changed.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
	// ChangeLost ends a watch whose connection to the store could not be
	// restored. No further changes follow it.
	ChangeLost ChangeKind = "lost"
)

// CallChange is delivered to record watchers. Record is the last known state,
// also for removals.
type CallChange struct {
	Kind   ChangeKind `json:"kind"`
	Record CallRecord `json:"record"`
}

// CandidateChange is delivered to candidate watchers. Candidates are
// append-only so Kind is always ChangeAdded.
type CandidateChange struct {
	Kind      ChangeKind   `json:"kind"`
	Candidate ICECandidate `json:"candidate"`
}
