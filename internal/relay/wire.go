package relay

import (
	"net/url"

	"nyx/internal/domain"
)

func callPath(id domain.CallID) string {
	return "/calls/" + url.PathEscape(string(id))
}

func candidatesPath(id domain.CallID, side domain.CandidateSide) string {
	return callPath(id) + "/candidates/" + url.PathEscape(string(side))
}

func userPath(id domain.UserID) string {
	return "/users/" + url.PathEscape(string(id))
}

func watchCallPath(id domain.CallID) string {
	return "/watch" + callPath(id)
}

func watchIncomingPath(callee domain.UserID) string {
	return "/watch/incoming/" + url.PathEscape(string(callee))
}

func watchCandidatesPath(id domain.CallID, side domain.CandidateSide) string {
	return "/watch" + candidatesPath(id, side)
}

func conversationPath(id domain.ConversationID) string {
	return "/conversations/" + url.PathEscape(string(id))
}

func messagesPath(id domain.ConversationID) string {
	return conversationPath(id) + "/messages"
}

func readPath(id domain.ConversationID) string {
	return conversationPath(id) + "/read"
}

func typingPath(id domain.ConversationID, user domain.UserID) string {
	return conversationPath(id) + "/typing/" + url.PathEscape(string(user))
}

func reactionPath(id domain.MessageID, user domain.UserID) string {
	return "/messages/" + url.PathEscape(string(id)) + "/reactions/" + url.PathEscape(string(user))
}

func userConversationsPath(user domain.UserID) string {
	return userPath(user) + "/conversations"
}

func watchMessagesPath(id domain.ConversationID) string {
	return "/watch" + messagesPath(id)
}

func watchConversationsPath(user domain.UserID) string {
	return "/watch" + userConversationsPath(user)
}

type readBody struct {
	Reader domain.UserID `json:"reader"`
}

type typingBody struct {
	Typing bool `json:"typing"`
}

type reactionBody struct {
	Emoji string `json:"emoji"`
}

// errorBody is the JSON body of every non-2xx response.
type errorBody struct {
	Error string `json:"error"`
}
