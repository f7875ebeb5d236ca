package domain

import (
	interfaces "nyx/internal/domain/interfaces"
	types "nyx/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	UserID             = types.UserID
	CallID             = types.CallID
	Seed               = types.Seed
	X25519Public       = types.X25519Public
	X25519Private      = types.X25519Private
	Identity           = types.Identity
	Profile            = types.Profile
	CallStatus         = types.CallStatus
	CallType           = types.CallType
	TrackKind          = types.TrackKind
	TrackInfo          = types.TrackInfo
	CallSession        = types.CallSession
	SDPType            = types.SDPType
	SessionDescription = types.SessionDescription
	RecordStatus       = types.RecordStatus
	CallRecord         = types.CallRecord
	CallUpdate         = types.CallUpdate
	ICECandidate       = types.ICECandidate
	CandidateSide      = types.CandidateSide
	ChangeKind         = types.ChangeKind
	CallChange         = types.CallChange
	CandidateChange    = types.CandidateChange
	Constraints        = types.Constraints
	ConversationID     = types.ConversationID
	MessageID          = types.MessageID
	Conversation       = types.Conversation
	ReplyRef           = types.ReplyRef
	ChatMessage        = types.ChatMessage
	MessageChange      = types.MessageChange
	ConversationChange = types.ConversationChange
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	KeyValueStore   = interfaces.KeyValueStore
	IdentityStore   = interfaces.IdentityStore
	BlobStore       = interfaces.BlobStore
	Unsubscribe     = interfaces.Unsubscribe
	SignalingStore  = interfaces.SignalingStore
	Directory       = interfaces.Directory
	MessageStore    = interfaces.MessageStore
	MediaDevices    = interfaces.MediaDevices
	LocalStream     = interfaces.LocalStream
	LocalTrack      = interfaces.LocalTrack
	IdentityService = interfaces.IdentityService
	BlockList       = interfaces.BlockList
)

// Constants re-exported from the types subpackage.
const (
	KeyIdentity    = types.KeyIdentity
	KeyProfile     = types.KeyProfile
	KeyBlocked     = types.KeyBlocked

	CallIdle      = types.CallIdle
	CallOutgoing  = types.CallOutgoing
	CallIncoming  = types.CallIncoming
	CallConnected = types.CallConnected
	CallError     = types.CallError

	CallAudio = types.CallAudio
	CallVideo = types.CallVideo

	TrackAudio = types.TrackAudio
	TrackVideo = types.TrackVideo

	SDPOffer  = types.SDPOffer
	SDPAnswer = types.SDPAnswer

	RecordRejected = types.RecordRejected

	CallerCandidates = types.CallerCandidates
	AnswerCandidates = types.AnswerCandidates

	ChangeAdded    = types.ChangeAdded
	ChangeModified = types.ChangeModified
	ChangeRemoved  = types.ChangeRemoved
	ChangeLost     = types.ChangeLost

	ConversationStarted = types.ConversationStarted
	EncryptedPreview    = types.EncryptedPreview
	UnknownName         = types.UnknownName
	TypingWindow        = types.TypingWindow
)

// IdleSession returns the initial call session.
func IdleSession() CallSession { return types.IdleSession() }

// ConversationIDFor returns the conversation id shared by a and b.
func ConversationIDFor(a, b UserID) ConversationID { return types.ConversationIDFor(a, b) }
