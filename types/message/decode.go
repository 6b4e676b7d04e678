package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/pion/webrtc/v4"
)

// ErrUnsupportedMessage is returned for gateway messages without a variant.
var ErrUnsupportedMessage = errors.New("unsupported message")

type wireMessage struct {
	Janus          string                     `json:"janus"`
	Transaction    string                     `json:"transaction"`
	SessionID      uint64                     `json:"session_id"`
	Sender         uint64                     `json:"sender"`
	Data           *wireData                  `json:"data"`
	Error          *wireError                 `json:"error"`
	PluginData     *wirePluginData            `json:"plugindata"`
	JSEP           *webrtc.SessionDescription `json:"jsep"`
	Name           string                     `json:"name"`
	Version        int                        `json:"version"`
	VersionString  string                     `json:"version_string"`
	SessionTimeout int                        `json:"session-timeout"`
	APISecret      bool                       `json:"api_secret"`
	AuthToken      bool                       `json:"auth_token"`
	Type           string                     `json:"type"`
	Media          string                     `json:"media"`
	Receiving      bool                       `json:"receiving"`
	Uplink         bool                       `json:"uplink"`
	Lost           int                        `json:"lost"`
	Reason         string                     `json:"reason"`
	Candidate      json.RawMessage            `json:"candidate"`
}

type wireData struct {
	ID uint64 `json:"id"`
}

type wireError struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

type wirePluginData struct {
	Plugin string          `json:"plugin"`
	Data   json.RawMessage `json:"data"`
}

type wireRoom struct {
	VideoRoom   string          `json:"videoroom"`
	Room        uint64          `json:"room"`
	ID          uint64          `json:"id"`
	PrivateID   uint64          `json:"private_id"`
	Display     string          `json:"display"`
	Description string          `json:"description"`
	Publishers  []Publisher     `json:"publishers"`
	Leaving     json.RawMessage `json:"leaving"`
	Unpublished json.RawMessage `json:"unpublished"`
	Configured  string          `json:"configured"`
	Started     string          `json:"started"`
	Left        string          `json:"left"`
	ErrorCode   int             `json:"error_code"`
	Error       string          `json:"error"`
}

type wireCandidate struct {
	webrtc.ICECandidateInit
	Completed bool `json:"completed"`
}

// Decode parses a raw gateway message into its variant.
func Decode(data []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	env := Envelope{
		Transaction: w.Transaction,
		SessionID:   w.SessionID,
		Sender:      w.Sender,
	}

	switch w.Janus {
	case "ack":
		return &Ack{Envelope: env}, nil
	case "error":
		msg := &Error{Envelope: env}
		if w.Error != nil {
			msg.Code = w.Error.Code
			msg.Reason = w.Error.Reason
		}
		return msg, nil
	case "server_info":
		return &ServerInfo{
			Envelope:       env,
			Name:           w.Name,
			Version:        w.Version,
			VersionString:  w.VersionString,
			SessionTimeout: w.SessionTimeout,
			APISecret:      w.APISecret,
			AuthToken:      w.AuthToken,
		}, nil
	case "timeout":
		return &SessionTimeout{Envelope: env}, nil
	case "success", "event":
		if w.PluginData != nil {
			return decodePluginData(env, w.PluginData, w.JSEP)
		}
		if w.Data != nil {
			return &Success{Envelope: env, ID: w.Data.ID}, nil
		}
		if w.Janus == "success" {
			return &Success{Envelope: env}, nil
		}
	case "webrtcup":
		return &WebRTCUp{Envelope: env}, nil
	case "media":
		return &Media{Envelope: env, Type: w.Type, Receiving: w.Receiving}, nil
	case "hangup":
		return &Hangup{Envelope: env, Reason: w.Reason}, nil
	case "slowlink":
		return &SlowLink{Envelope: env, Type: w.Media, Uplink: w.Uplink, Lost: w.Lost}, nil
	case "trickle":
		return decodeTrickle(env, w.Candidate)
	case "detached":
		return &Detached{Envelope: env}, nil
	}

	return nil, fmt.Errorf("%q: %w", w.Janus, ErrUnsupportedMessage)
}

func decodePluginData(env Envelope, pd *wirePluginData, jsep *webrtc.SessionDescription) (Message, error) {
	var room wireRoom
	if len(pd.Data) > 0 {
		if err := json.Unmarshal(pd.Data, &room); err != nil {
			return nil, fmt.Errorf("failed to parse plugin data: %w", err)
		}
	}

	if room.ErrorCode != 0 {
		return &Error{Envelope: env, Code: room.ErrorCode, Reason: room.Error, Plugin: true}, nil
	}

	switch room.VideoRoom {
	case "talking", "stopped-talking":
		return &Talking{
			Envelope:    env,
			Room:        room.Room,
			PublisherID: room.ID,
			Talking:     room.VideoRoom == "talking",
		}, nil
	case "event":
		if len(room.Publishers) > 0 {
			return &PublisherJoined{Envelope: env, Room: room.Room, Publishers: room.Publishers}, nil
		}
		if id, ok := parseID(room.Leaving); ok {
			return &PublisherLeft{Envelope: env, Room: room.Room, PublisherID: id}, nil
		}
		if id, ok := parseID(room.Unpublished); ok {
			return &PublisherUnpublished{Envelope: env, Room: room.Room, PublisherID: id}, nil
		}
	}

	return &PluginData{
		Envelope: env,
		Plugin:   pd.Plugin,
		Body: RoomResponse{
			Type:        room.VideoRoom,
			Room:        room.Room,
			ID:          room.ID,
			PrivateID:   room.PrivateID,
			Display:     room.Display,
			Description: room.Description,
			Publishers:  room.Publishers,
			Configured:  room.Configured,
			Started:     room.Started,
			Left:        room.Left,
		},
		JSEP: jsep,
	}, nil
}

func decodeTrickle(env Envelope, raw json.RawMessage) (Message, error) {
	msg := &Trickle{Envelope: env}
	if len(raw) == 0 {
		return msg, nil
	}
	var c wireCandidate
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("failed to parse candidate: %w", err)
	}
	if c.Completed {
		msg.Completed = true
		return msg, nil
	}
	candidate := c.ICECandidateInit
	msg.Candidate = &candidate
	return msg, nil
}

// parseID reads a numeric publisher id. The gateway sends "ok" instead of an
// id when the leaving participant is the receiver itself.
func parseID(raw json.RawMessage) (uint64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	id, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
