package message_test

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomcast/types/message"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  message.Kind
		check func(t *testing.T, msg message.Message)
	}{
		{
			name:  "given ack when decoded then return ack",
			input: `{"janus":"ack","session_id":1,"transaction":"tx"}`,
			kind:  message.KindAck,
		},
		{
			name:  "given server info when decoded then return session timeout",
			input: `{"janus":"server_info","transaction":"tx","name":"Janus","version":1200,"session-timeout":60,"api_secret":false}`,
			kind:  message.KindServerInfo,
			check: func(t *testing.T, msg message.Message) {
				info := msg.(*message.ServerInfo)
				assert.Equal(t, 60, info.SessionTimeout)
				assert.Equal(t, "tx", info.TransactionID())
			},
		},
		{
			name:  "given success with data when decoded then return id",
			input: `{"janus":"success","transaction":"tx","data":{"id":4242}}`,
			kind:  message.KindSuccess,
			check: func(t *testing.T, msg message.Message) {
				assert.Equal(t, uint64(4242), msg.(*message.Success).ID)
			},
		},
		{
			name:  "given core error when decoded then return code and reason",
			input: `{"janus":"error","transaction":"tx","error":{"code":458,"reason":"No such session"}}`,
			kind:  message.KindError,
			check: func(t *testing.T, msg message.Message) {
				e := msg.(*message.Error)
				assert.Equal(t, 458, e.Code)
				assert.False(t, e.Plugin)
				assert.Contains(t, e.Error(), "No such session")
			},
		},
		{
			name:  "given plugin error when decoded then return plugin error",
			input: `{"janus":"event","sender":7,"transaction":"tx","plugindata":{"plugin":"janus.plugin.videoroom","data":{"videoroom":"event","error_code":426,"error":"No such room"}}}`,
			kind:  message.KindError,
			check: func(t *testing.T, msg message.Message) {
				e := msg.(*message.Error)
				assert.True(t, e.Plugin)
				assert.Equal(t, uint64(7), e.HandleID())
			},
		},
		{
			name:  "given room created when decoded then return plugin data",
			input: `{"janus":"success","sender":42,"transaction":"tx","plugindata":{"plugin":"janus.plugin.videoroom","data":{"videoroom":"created","room":7}}}`,
			kind:  message.KindPluginData,
			check: func(t *testing.T, msg message.Message) {
				pd := msg.(*message.PluginData)
				assert.Equal(t, "created", pd.Body.Type)
				assert.Equal(t, uint64(7), pd.Body.Room)
				assert.Nil(t, pd.JSEP)
			},
		},
		{
			name:  "given attached event with offer when decoded then return jsep",
			input: `{"janus":"event","sender":55,"transaction":"tx","plugindata":{"plugin":"janus.plugin.videoroom","data":{"videoroom":"attached","room":7,"id":99}},"jsep":{"type":"offer","sdp":"v=0"}}`,
			kind:  message.KindPluginData,
			check: func(t *testing.T, msg message.Message) {
				pd := msg.(*message.PluginData)
				require.NotNil(t, pd.JSEP)
				assert.Equal(t, webrtc.SDPTypeOffer, pd.JSEP.Type)
				assert.Equal(t, uint64(99), pd.Body.ID)
			},
		},
		{
			name:  "given publishers event when decoded then return publisher joined",
			input: `{"janus":"event","sender":42,"plugindata":{"plugin":"janus.plugin.videoroom","data":{"videoroom":"event","room":7,"publishers":[{"id":99,"display":"alice"}]}}}`,
			kind:  message.KindPublisherJoined,
			check: func(t *testing.T, msg message.Message) {
				joined := msg.(*message.PublisherJoined)
				require.Len(t, joined.Publishers, 1)
				assert.Equal(t, uint64(99), joined.Publishers[0].ID)
				assert.Equal(t, "alice", joined.Publishers[0].Display)
			},
		},
		{
			name:  "given joined reply with publishers when decoded then return plugin data",
			input: `{"janus":"event","sender":42,"transaction":"tx","plugindata":{"plugin":"janus.plugin.videoroom","data":{"videoroom":"joined","room":7,"id":1,"publishers":[{"id":99}]}}}`,
			kind:  message.KindPluginData,
		},
		{
			name:  "given leaving event when decoded then return publisher left",
			input: `{"janus":"event","sender":42,"plugindata":{"plugin":"janus.plugin.videoroom","data":{"videoroom":"event","room":7,"leaving":99}}}`,
			kind:  message.KindPublisherLeft,
			check: func(t *testing.T, msg message.Message) {
				assert.Equal(t, uint64(99), msg.(*message.PublisherLeft).PublisherID)
			},
		},
		{
			name:  "given own leaving ok when decoded then return plugin data",
			input: `{"janus":"event","sender":42,"plugindata":{"plugin":"janus.plugin.videoroom","data":{"videoroom":"event","room":7,"leaving":"ok"}}}`,
			kind:  message.KindPluginData,
		},
		{
			name:  "given unpublished event when decoded then return publisher unpublished",
			input: `{"janus":"event","sender":42,"plugindata":{"plugin":"janus.plugin.videoroom","data":{"videoroom":"event","room":7,"unpublished":99}}}`,
			kind:  message.KindPublisherUnpublished,
		},
		{
			name:  "given stopped talking when decoded then return talking false",
			input: `{"janus":"event","sender":42,"plugindata":{"plugin":"janus.plugin.videoroom","data":{"videoroom":"stopped-talking","room":7,"id":99}}}`,
			kind:  message.KindTalking,
			check: func(t *testing.T, msg message.Message) {
				talking := msg.(*message.Talking)
				assert.False(t, talking.Talking)
				assert.Equal(t, uint64(99), talking.PublisherID)
			},
		},
		{
			name:  "given trickle candidate when decoded then return candidate",
			input: `{"janus":"trickle","session_id":1,"sender":55,"candidate":{"sdpMid":"0","sdpMLineIndex":0,"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host"}}`,
			kind:  message.KindTrickle,
			check: func(t *testing.T, msg message.Message) {
				trickle := msg.(*message.Trickle)
				require.NotNil(t, trickle.Candidate)
				assert.Contains(t, trickle.Candidate.Candidate, "10.0.0.1")
				assert.False(t, trickle.Completed)
			},
		},
		{
			name:  "given trickle completed when decoded then return completed",
			input: `{"janus":"trickle","session_id":1,"sender":55,"candidate":{"completed":true}}`,
			kind:  message.KindTrickle,
			check: func(t *testing.T, msg message.Message) {
				trickle := msg.(*message.Trickle)
				assert.True(t, trickle.Completed)
				assert.Nil(t, trickle.Candidate)
			},
		},
		{
			name:  "given media event when decoded then return media",
			input: `{"janus":"media","session_id":1,"sender":42,"type":"audio","receiving":true}`,
			kind:  message.KindMedia,
		},
		{
			name:  "given session timeout when decoded then return timeout",
			input: `{"janus":"timeout","session_id":1}`,
			kind:  message.KindSessionTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := message.Decode([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, msg.Kind())
			if tt.check != nil {
				tt.check(t, msg)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name:    "given unknown janus type when decoded then return unsupported",
			input:   `{"janus":"whatever"}`,
			wantErr: message.ErrUnsupportedMessage,
		},
		{
			name:  "given broken json when decoded then return error",
			input: `{"janus":`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := message.Decode([]byte(tt.input))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
