package janus

import (
	"github.com/rs/zerolog/log"

	"roomcast/types/message"
	"roomcast/types/request"
)

// RoomConfig describes the room created by the publisher.
type RoomConfig struct {
	Room        uint64
	Secret      string
	Description string
	// Publishers is the initial publisher limit. Zero selects one.
	Publishers int
	Bitrate    int
	Record     bool
	Private    bool
}

// pluginReply reports whether msg is the video-room reply of transaction
// with the given body type.
func pluginReply(msg message.Message, transaction, typ string) (*message.PluginData, bool) {
	data, ok := msg.(*message.PluginData)
	if !ok || data.TransactionID() != transaction || data.Body.Type != typ {
		return nil, false
	}
	return data, true
}

func sendPluginMessage(ctx Context, body any) (string, error) {
	req := request.NewMessage(ctx.SessionID(), ctx.PluginID(), body)
	return req.Transaction, ctx.Send(req)
}

// CreateRoomState creates the room the publisher joins.
type CreateRoomState struct {
	config      RoomConfig
	next        State
	transaction string
}

func NewCreateRoomState(config RoomConfig, next State) *CreateRoomState {
	return &CreateRoomState{config: config, next: next}
}

func (s *CreateRoomState) Name() string { return "create-room" }

func (s *CreateRoomState) Initialize(ctx Context) error {
	publishers := s.config.Publishers
	if publishers <= 0 {
		publishers = 1
	}
	body := &request.CreateRoom{
		Request:         "create",
		Room:            ctx.RoomID(),
		Description:     s.config.Description,
		Secret:          ctx.RoomSecret(),
		IsPrivate:       s.config.Private,
		Publishers:      publishers,
		Bitrate:         s.config.Bitrate,
		AudioLevelEvent: true,
		NotifyJoining:   true,
		Record:          s.config.Record,
	}

	var err error
	s.transaction, err = sendPluginMessage(ctx, body)
	return err
}

func (s *CreateRoomState) HandleMessage(ctx Context, msg message.Message) (State, error) {
	data, ok := pluginReply(msg, s.transaction, "created")
	if !ok {
		return nil, nil
	}
	ctx.SetRoomID(data.Body.Room)
	return s.next, nil
}

// JoinRoomState joins the room as publisher.
type JoinRoomState struct {
	next        State
	transaction string
}

func NewJoinRoomState(next State) *JoinRoomState {
	return &JoinRoomState{next: next}
}

func (s *JoinRoomState) Name() string { return "join-room" }

func (s *JoinRoomState) Initialize(ctx Context) error {
	var err error
	s.transaction, err = sendPluginMessage(ctx, request.NewJoinPublisher(ctx.RoomID(), ctx.StreamContext().DisplayName))
	return err
}

func (s *JoinRoomState) HandleMessage(ctx Context, msg message.Message) (State, error) {
	data, ok := pluginReply(msg, s.transaction, "joined")
	if !ok {
		return nil, nil
	}
	ctx.SetParticipant(data.Body.ID, data.Body.PrivateID)
	return s.next, nil
}

// DestroyRoomState destroys the room. It is the last state of a publisher.
type DestroyRoomState struct {
	transaction string
}

func NewDestroyRoomState() *DestroyRoomState {
	return &DestroyRoomState{}
}

func (s *DestroyRoomState) Name() string { return "destroy-room" }

func (s *DestroyRoomState) Initialize(ctx Context) error {
	var err error
	s.transaction, err = sendPluginMessage(ctx, request.NewDestroyRoom(ctx.RoomID(), ctx.RoomSecret()))
	return err
}

func (s *DestroyRoomState) HandleMessage(ctx Context, msg message.Message) (State, error) {
	if _, ok := pluginReply(msg, s.transaction, "destroyed"); ok {
		log.Info().Str("module", "janus").Uint64("room", ctx.RoomID()).Msg("room destroyed")
	}
	return nil, nil
}
