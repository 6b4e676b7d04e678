package janus

import (
	"roomcast/types/message"
	"roomcast/types/request"
)

// InfoState fetches the server info, which must be present before a
// session id is stored.
type InfoState struct {
	next        State
	transaction string
}

func NewInfoState(next State) *InfoState {
	return &InfoState{next: next}
}

func (s *InfoState) Name() string { return "info" }

func (s *InfoState) Initialize(ctx Context) error {
	req := request.NewInfo()
	s.transaction = req.Transaction
	return ctx.Send(req)
}

func (s *InfoState) HandleMessage(ctx Context, msg message.Message) (State, error) {
	info, ok := msg.(*message.ServerInfo)
	if !ok || info.TransactionID() != s.transaction {
		return nil, nil
	}
	ctx.SetInfo(info)
	return s.next, nil
}

// CreateSessionState creates the gateway session.
type CreateSessionState struct {
	next        State
	transaction string
}

// NewCreateSessionState returns the state; next may be nil, leaving the
// handler in this state once the session exists.
func NewCreateSessionState(next State) *CreateSessionState {
	return &CreateSessionState{next: next}
}

func (s *CreateSessionState) Name() string { return "create-session" }

func (s *CreateSessionState) Initialize(ctx Context) error {
	req := request.NewCreate()
	s.transaction = req.Transaction
	return ctx.Send(req)
}

func (s *CreateSessionState) HandleMessage(ctx Context, msg message.Message) (State, error) {
	success, ok := msg.(*message.Success)
	if !ok || success.TransactionID() != s.transaction {
		return nil, nil
	}
	ctx.SetSessionID(success.ID)
	return s.next, nil
}

// AttachPluginState attaches the video-room plugin and continues with the
// state it was constructed with.
type AttachPluginState struct {
	next        State
	transaction string
}

func NewAttachPluginState(next State) *AttachPluginState {
	return &AttachPluginState{next: next}
}

func (s *AttachPluginState) Name() string { return "attach-plugin" }

// Next returns the continuation.
func (s *AttachPluginState) Next() State {
	return s.next
}

func (s *AttachPluginState) Initialize(ctx Context) error {
	req := request.NewAttach(ctx.SessionID(), ctx.OpaqueID())
	s.transaction = req.Transaction
	return ctx.Send(req)
}

func (s *AttachPluginState) HandleMessage(ctx Context, msg message.Message) (State, error) {
	success, ok := msg.(*message.Success)
	if !ok || success.TransactionID() != s.transaction {
		return nil, nil
	}
	ctx.SetPluginID(success.ID)
	return s.next, nil
}
