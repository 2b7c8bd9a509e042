package webrtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hraban/opus"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/xpanvictor/xtutor/pkg/Logger"
	"github.com/xpanvictor/xtutor/pkg/io/audio"
	"github.com/xpanvictor/xtutor/pkg/io/transport"
	"github.com/xpanvictor/xtutor/pkg/pipeline"
)

var (
	ErrBadSDPType = errors.New("unsupported sdp type")
	ErrClosed     = errors.New("peer connection closed")
)

const (
	frameDuration = 20 * time.Millisecond
	// largest opus frame is 120ms
	maxDecodeSamples = 16000 * 120 / 1000
)

type Params struct {
	InputSampleRate int
	ICEServers      []string
}

// NewAPI builds the pion API shared by all peer connections.
func NewAPI() (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register codecs: %w", err)
	}
	return webrtc.NewAPI(webrtc.WithMediaEngine(m)), nil
}

// Transport is one peer connection: the client's microphone comes in on the
// remote audio track, bot speech goes out on a local opus track and status
// messages go over the client's data channel.
type Transport struct {
	*transport.Events
	params Params
	log    *Logger.Logger
	pc     *webrtc.PeerConnection
	track  *webrtc.TrackLocalStaticSample
	audio  chan []byte
	input  *transport.Input
	output *transport.Output

	mu      sync.Mutex
	channel *webrtc.DataChannel
	enc     *opus.Encoder
	encRate int

	done      chan struct{}
	closeOnce sync.Once
}

func New(api *webrtc.API, params Params, log *Logger.Logger) (*Transport, error) {
	if params.InputSampleRate <= 0 {
		params.InputSampleRate = 16000
	}
	if log == nil {
		log = Logger.Nop()
	}

	cfg := webrtc.Configuration{}
	if len(params.ICEServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: params.ICEServers}}
	}
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", "xtutor",
	)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("failed to create audio track: %w", err)
	}
	sender, err := pc.AddTrack(track)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("failed to add audio track: %w", err)
	}

	t := &Transport{
		Events: transport.NewEvents(),
		params: params,
		log:    log,
		pc:     pc,
		track:  track,
		audio:  make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	t.input = transport.NewInput(t.audio, params.InputSampleRate)
	t.output = transport.NewOutput(t)

	// RTCP has to be read for the interceptors to work
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	pc.OnTrack(t.onTrack)
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		t.log.Debugf("data channel %q opened by client", dc.Label())
		t.mu.Lock()
		t.channel = dc
		t.mu.Unlock()
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		t.log.Infof("peer connection state: %s", state)
		switch state {
		case webrtc.PeerConnectionStateConnected:
			t.Fire(context.Background(), transport.EventClientConnected)
		case webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed:
			t.Fire(context.Background(), transport.EventClientDisconnected)
		}
	})
	return t, nil
}

func (t *Transport) Input() pipeline.FrameProcessor  { return t.input }
func (t *Transport) Output() pipeline.FrameProcessor { return t.output }

// Negotiate applies the client's offer and returns the answer SDP once ICE
// gathering finished, so the answer carries every candidate.
func (t *Transport) Negotiate(ctx context.Context, sdp, sdpType string) (string, error) {
	typ := webrtc.NewSDPType(sdpType)
	if typ != webrtc.SDPTypeOffer {
		return "", fmt.Errorf("%w: %q", ErrBadSDPType, sdpType)
	}
	if err := t.pc.SetRemoteDescription(webrtc.SessionDescription{Type: typ, SDP: sdp}); err != nil {
		return "", fmt.Errorf("failed to set remote description: %w", err)
	}
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create answer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(t.pc)
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("failed to set local description: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return "", fmt.Errorf("ice gathering: %w", ctx.Err())
	}
	local := t.pc.LocalDescription()
	if local == nil {
		return "", errors.New("no local description after gathering")
	}
	return local.SDP, nil
}

func (t *Transport) onTrack(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	if remote.Kind() != webrtc.RTPCodecTypeAudio {
		t.log.Debugf("ignoring %s track", remote.Kind())
		return
	}
	dec, err := opus.NewDecoder(t.params.InputSampleRate, 1)
	if err != nil {
		t.log.Errorf("failed to create opus decoder: %v", err)
		return
	}
	t.log.Infof("receiving audio track %s (%s)", remote.ID(), remote.Codec().MimeType)

	pcm := make([]int16, maxDecodeSamples*t.params.InputSampleRate/16000)
	for {
		pkt, _, err := remote.ReadRTP()
		if err != nil {
			t.log.Debugf("audio track ended: %v", err)
			return
		}
		if len(pkt.Payload) == 0 {
			continue
		}
		n, err := dec.Decode(pkt.Payload, pcm)
		if err != nil {
			t.log.Warnf("opus decode failed: %v", err)
			continue
		}
		select {
		case t.audio <- audio.Int16ToBytes(pcm[:n]):
		case <-t.done:
			return
		default:
			t.log.Warn("input audio backlog full, dropping packet")
		}
	}
}

// WriteAudio encodes one 20ms chunk of PCM to opus and writes it to the track.
func (t *Transport) WriteAudio(pcm []byte, sampleRate int) error {
	select {
	case <-t.done:
		return ErrClosed
	default:
	}
	if !audio.ValidOpusRate(sampleRate) {
		pcm = audio.Resample(pcm, sampleRate, 48000)
		sampleRate = 48000
	}

	t.mu.Lock()
	if t.enc == nil || t.encRate != sampleRate {
		enc, err := opus.NewEncoder(sampleRate, 1, opus.AppVoIP)
		if err != nil {
			t.mu.Unlock()
			return fmt.Errorf("failed to create opus encoder: %w", err)
		}
		t.enc, t.encRate = enc, sampleRate
	}
	enc := t.enc
	t.mu.Unlock()

	data := make([]byte, 4000)
	n, err := enc.Encode(audio.BytesToInt16(pcm), data)
	if err != nil {
		return fmt.Errorf("opus encode: %w", err)
	}
	return t.track.WriteSample(media.Sample{Data: data[:n], Duration: frameDuration})
}

// SendMessage writes msg as JSON on the client's data channel. Messages are
// dropped while no channel is open.
func (t *Transport) SendMessage(msg any) error {
	t.mu.Lock()
	dc := t.channel
	t.mu.Unlock()
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		t.log.Debug("no open data channel, message dropped")
		return nil
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return dc.SendText(string(b))
}

func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.pc.Close()
		t.Fire(context.Background(), transport.EventClientDisconnected)
	})
	return err
}
