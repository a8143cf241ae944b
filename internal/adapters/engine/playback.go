package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Talk/internal/core"
)

// playbackPipeline streams one recorded call back to a requester.
type playbackPipeline struct {
	ctx    context.Context
	cancel context.CancelFunc
	pc     *webrtc.PeerConnection

	releaseOnce sync.Once
}

func (p *playbackPipeline) Release() {
	p.releaseOnce.Do(func() {
		p.cancel()
		if err := p.pc.Close(); err != nil {
			log.Debug().Err(err).Str("module", "engine").Msg("playback close error")
		}
	})
}

// CreatePlaybackPipeline serves <dir>/<user>.ogg over a fresh peer
// connection. It fails when no recording exists. onEndOfStream fires once
// when the file is exhausted; it does not fire if the pipeline is released
// first.
func (e *Engine) CreatePlaybackPipeline(user string, onEndOfStream func()) (core.Pipeline, core.Endpoint, error) {
	path := filepath.Join(e.recordingDir, user+".ogg")
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("no recording for user %s: %w", user, err)
	}

	pc, err := webrtc.NewPeerConnection(e.webrtcCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("playback peer connection: %w", err)
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "playback-"+user,
	)
	if err != nil {
		_ = pc.Close()
		return nil, nil, fmt.Errorf("playback track: %w", err)
	}
	if _, err := pc.AddTrack(track); err != nil {
		_ = pc.Close()
		return nil, nil, fmt.Errorf("playback add track: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &playbackPipeline{ctx: ctx, cancel: cancel, pc: pc}

	// Feed only once media can actually flow.
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateConnected {
			go feedRecording(ctx, path, track, user, onEndOfStream)
		}
	})

	return p, newEndpoint(pc), nil
}

// feedRecording paces ogg pages onto the track in real time and fires
// onEndOfStream at EOF.
func feedRecording(ctx context.Context, path string, track *webrtc.TrackLocalStaticSample, user string, onEndOfStream func()) {
	logger := log.With().Str("module", "engine").Str("user", user).Logger()

	file, err := os.Open(path)
	if err != nil {
		logger.Error().Err(err).Msg("playback open failed")
		return
	}
	defer file.Close()

	ogg, _, err := oggreader.NewWith(file)
	if err != nil {
		logger.Error().Err(err).Msg("playback parse failed")
		return
	}

	logger.Info().Str("path", path).Msg("playback started")

	var lastGranule uint64
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		pageData, pageHeader, err := ogg.ParseNextPage()
		if errors.Is(err, io.EOF) {
			logger.Info().Msg("playback end of stream")
			select {
			case <-ctx.Done():
			default:
				onEndOfStream()
			}
			return
		}
		if err != nil {
			logger.Error().Err(err).Msg("playback page parse failed")
			return
		}

		sampleCount := pageHeader.GranulePosition - lastGranule
		lastGranule = pageHeader.GranulePosition
		duration := time.Duration(sampleCount) * time.Second / opusSampleRate

		if err := track.WriteSample(media.Sample{Data: pageData, Duration: duration}); err != nil {
			logger.Debug().Err(err).Msg("playback write failed")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
