package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xpanvictor/xtutor/pkg/Logger"
	"github.com/xpanvictor/xtutor/pkg/io/transport"
	"github.com/xpanvictor/xtutor/pkg/pipeline"
)

var ErrClosed = errors.New("websocket closed")

const writeWait = 5 * time.Second

// AudioFormat is sent before the first audio frame and whenever the output
// rate changes, so the client knows how to play the binary frames.
type AudioFormat struct {
	Type       string `json:"type"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Encoding   string `json:"encoding"`
}

type Params struct {
	InputSampleRate int
}

// Transport carries raw s16le PCM over binary frames in both directions and
// JSON messages over text frames to the client.
type Transport struct {
	*transport.Events
	conn   *websocket.Conn
	log    *Logger.Logger
	audio  chan []byte
	input  *transport.Input
	output *transport.Output

	writeMu  sync.Mutex
	lastRate int

	done      chan struct{}
	closeOnce sync.Once
}

// New wraps an upgraded connection and starts reading from it. The client
// counts as connected right away.
func New(conn *websocket.Conn, params Params, log *Logger.Logger) *Transport {
	if params.InputSampleRate <= 0 {
		params.InputSampleRate = 16000
	}
	if log == nil {
		log = Logger.Nop()
	}
	t := &Transport{
		Events: transport.NewEvents(),
		conn:   conn,
		log:    log,
		audio:  make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	t.input = transport.NewInput(t.audio, params.InputSampleRate)
	t.output = transport.NewOutput(t)

	t.Fire(context.Background(), transport.EventClientConnected)
	go t.readLoop()
	return t
}

func (t *Transport) Input() pipeline.FrameProcessor  { return t.input }
func (t *Transport) Output() pipeline.FrameProcessor { return t.output }

func (t *Transport) readLoop() {
	defer t.Fire(context.Background(), transport.EventClientDisconnected)
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.log.Warnf("websocket read failed: %v", err)
			} else {
				t.log.Debugf("websocket closed: %v", err)
			}
			return
		}
		if kind != websocket.BinaryMessage {
			t.log.Debugf("ignoring %d byte text message", len(data))
			continue
		}
		select {
		case t.audio <- data:
		case <-t.done:
			return
		default:
			t.log.Warn("input audio backlog full, dropping frame")
		}
	}
}

func (t *Transport) WriteAudio(pcm []byte, sampleRate int) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.closed() {
		return ErrClosed
	}
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if sampleRate != t.lastRate {
		if err := t.conn.WriteJSON(AudioFormat{
			Type:       "audio_format",
			SampleRate: sampleRate,
			Channels:   1,
			Encoding:   "s16le",
		}); err != nil {
			return err
		}
		t.lastRate = sampleRate
	}
	return t.conn.WriteMessage(websocket.BinaryMessage, pcm)
}

func (t *Transport) SendMessage(msg any) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.closed() {
		return ErrClosed
	}
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteJSON(msg)
}

func (t *Transport) closed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.writeMu.Lock()
		close(t.done)
		t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
			time.Now().Add(time.Second))
		err = t.conn.Close()
		t.writeMu.Unlock()
	})
	return err
}
