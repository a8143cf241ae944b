// Package engine implements the media-engine contract on pion/webrtc: paired
// call pipelines that relay audio between two server-side peer connections,
// opus recording to disk, and playback of recorded calls.
package engine

import (
	"fmt"
	"os"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Talk/internal/core"
	"github.com/dkeye/Talk/internal/protocol"
)

type Engine struct {
	webrtcCfg    webrtc.Configuration
	recordingDir string
}

// New builds the engine. TURN entries without complete credentials are
// dropped, since server-side pion requires them.
func New(ice protocol.ICEConfig, recordingDir string) (*Engine, error) {
	if err := os.MkdirAll(recordingDir, 0o755); err != nil {
		return nil, fmt.Errorf("recording dir: %w", err)
	}

	servers := []webrtc.ICEServer{{URLs: []string{ice.StunURL}}}
	if ice.TurnURL != "" && ice.TurnUsername != "" && ice.TurnPassword != "" {
		servers = append(servers, webrtc.ICEServer{
			URLs:       []string{ice.TurnURL},
			Username:   ice.TurnUsername,
			Credential: ice.TurnPassword,
		})
	}

	return &Engine{
		webrtcCfg:    webrtc.Configuration{ICEServers: servers},
		recordingDir: recordingDir,
	}, nil
}

// CreatePairedPipeline builds the two legs of a call and wires each leg's
// inbound audio to the opposite leg's outbound track.
func (e *Engine) CreatePairedPipeline(caller, callee string) (core.Pipeline, core.Endpoint, core.Endpoint, error) {
	p := newPairedPipeline()

	callerLeg, err := e.newLeg(p, caller)
	if err != nil {
		p.Release()
		return nil, nil, nil, err
	}
	calleeLeg, err := e.newLeg(p, callee)
	if err != nil {
		p.Release()
		return nil, nil, nil, err
	}

	// Each leg relays into the other's outbound track.
	callerLeg.peerOut = calleeLeg.out
	calleeLeg.peerOut = callerLeg.out

	p.legs = [2]*leg{callerLeg, calleeLeg}
	log.Info().Str("module", "engine").Str("caller", caller).Str("callee", callee).Msg("paired pipeline created")
	return p, callerLeg.ep, calleeLeg.ep, nil
}

func (e *Engine) newLeg(p *pairedPipeline, user string) (*leg, error) {
	pc, err := webrtc.NewPeerConnection(e.webrtcCfg)
	if err != nil {
		return nil, fmt.Errorf("peer connection for %s: %w", user, err)
	}

	out, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "talk-"+user,
	)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("out track for %s: %w", user, err)
	}
	if _, err := pc.AddTrack(out); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("add track for %s: %w", user, err)
	}

	l := &leg{
		user: user,
		pc:   pc,
		ep:   newEndpoint(pc),
		out:  out,
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		go l.relay(p.ctx, track)
	})

	return l, nil
}

// StartRecording attaches an opus recorder to both legs.
func (e *Engine) StartRecording(pipeline core.Pipeline) error {
	p, ok := pipeline.(*pairedPipeline)
	if !ok {
		return fmt.Errorf("engine: not a paired pipeline")
	}
	for _, l := range p.legs {
		if l == nil {
			continue
		}
		if err := l.startRecording(e.recordingDir); err != nil {
			return err
		}
	}
	return nil
}
