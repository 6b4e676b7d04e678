package request

// CreateRoom is the body creating a room.
type CreateRoom struct {
	Request            string `json:"request"`
	Room               uint64 `json:"room,omitempty"`
	Permanent          bool   `json:"permanent"`
	Description        string `json:"description,omitempty"`
	Secret             string `json:"secret,omitempty"`
	Pin                string `json:"pin,omitempty"`
	IsPrivate          bool   `json:"is_private"`
	Publishers         int    `json:"publishers"`
	Bitrate            int    `json:"bitrate,omitempty"`
	AudioLevelEvent    bool   `json:"audiolevel_event"`
	AudioActivePackets int    `json:"audio_active_packets,omitempty"`
	AudioLevelAverage  int    `json:"audio_level_average,omitempty"`
	NotifyJoining      bool   `json:"notify_joining"`
	Record             bool   `json:"record"`
}

// EditRoom is the body changing room properties.
type EditRoom struct {
	Request       string `json:"request"`
	Room          uint64 `json:"room"`
	Secret        string `json:"secret,omitempty"`
	NewPublishers int    `json:"new_publishers,omitempty"`
}

// DestroyRoom is the body destroying a room.
type DestroyRoom struct {
	Request   string `json:"request"`
	Room      uint64 `json:"room"`
	Secret    string `json:"secret,omitempty"`
	Permanent bool   `json:"permanent"`
}

// JoinPublisher is the body joining a room as publisher.
type JoinPublisher struct {
	Request string `json:"request"`
	PType   string `json:"ptype"`
	Room    uint64 `json:"room"`
	Display string `json:"display,omitempty"`
}

// StreamDescription labels one published stream.
type StreamDescription struct {
	Mid         string `json:"mid"`
	Description string `json:"description"`
}

// Publish is the body publishing or reconfiguring local media.
type Publish struct {
	Request      string              `json:"request"`
	Descriptions []StreamDescription `json:"descriptions,omitempty"`
}

// JoinSubscriber is the body joining a room as subscriber of one feed.
type JoinSubscriber struct {
	Request   string `json:"request"`
	PType     string `json:"ptype"`
	Room      uint64 `json:"room"`
	Feed      uint64 `json:"feed"`
	PrivateID uint64 `json:"private_id,omitempty"`
}

// Start is the body starting a subscription.
type Start struct {
	Request string `json:"request"`
	Room    uint64 `json:"room"`
}

// Leave is the body leaving a room.
type Leave struct {
	Request string `json:"request"`
}

// Kick is the body removing a participant from a room.
type Kick struct {
	Request string `json:"request"`
	Room    uint64 `json:"room"`
	Secret  string `json:"secret,omitempty"`
	ID      uint64 `json:"id"`
}

// Moderate is the body muting or unmuting one stream of a participant.
type Moderate struct {
	Request string `json:"request"`
	Room    uint64 `json:"room"`
	Secret  string `json:"secret,omitempty"`
	ID      uint64 `json:"id"`
	Mid     string `json:"mid"`
	Mute    bool   `json:"mute"`
}

// NewEditRoom changes the allowed number of publishers.
func NewEditRoom(room uint64, secret string, publishers int) *EditRoom {
	return &EditRoom{Request: "edit", Room: room, Secret: secret, NewPublishers: publishers}
}

// NewDestroyRoom destroys a room.
func NewDestroyRoom(room uint64, secret string) *DestroyRoom {
	return &DestroyRoom{Request: "destroy", Room: room, Secret: secret}
}

// NewJoinPublisher joins a room as publisher.
func NewJoinPublisher(room uint64, display string) *JoinPublisher {
	return &JoinPublisher{Request: "join", PType: "publisher", Room: room, Display: display}
}

// NewPublish publishes local media. Renegotiations use configure.
func NewPublish(descriptions []StreamDescription, renegotiate bool) *Publish {
	req := "publish"
	if renegotiate {
		req = "configure"
	}
	return &Publish{Request: req, Descriptions: descriptions}
}

// NewJoinSubscriber subscribes to one publisher.
func NewJoinSubscriber(room, feed, privateID uint64) *JoinSubscriber {
	return &JoinSubscriber{Request: "join", PType: "subscriber", Room: room, Feed: feed, PrivateID: privateID}
}

// NewStart starts a subscription.
func NewStart(room uint64) *Start {
	return &Start{Request: "start", Room: room}
}

// NewLeave leaves the joined room.
func NewLeave() *Leave {
	return &Leave{Request: "leave"}
}

// NewKick removes a participant.
func NewKick(room uint64, secret string, id uint64) *Kick {
	return &Kick{Request: "kick", Room: room, Secret: secret, ID: id}
}

// NewModerate mutes or unmutes a participant's stream.
func NewModerate(room uint64, secret string, id uint64, mid string, mute bool) *Moderate {
	return &Moderate{Request: "moderate", Room: room, Secret: secret, ID: id, Mid: mid, Mute: mute}
}
