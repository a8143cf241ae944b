package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"github.com/rs/zerolog/log"
)

const (
	opusSampleRate = 48000
	opusChannels   = 2
)

// pairedPipeline owns the two peer connections of one call plus their
// recorders. Release may be called from either participant's teardown path
// concurrently; it runs once.
type pairedPipeline struct {
	ctx    context.Context
	cancel context.CancelFunc

	legs [2]*leg

	releaseOnce sync.Once
}

func newPairedPipeline() *pairedPipeline {
	ctx, cancel := context.WithCancel(context.Background())
	return &pairedPipeline{ctx: ctx, cancel: cancel}
}

func (p *pairedPipeline) Release() {
	p.releaseOnce.Do(func() {
		p.cancel()
		for _, l := range p.legs {
			if l != nil {
				l.close()
			}
		}
		log.Debug().Str("module", "engine").Msg("paired pipeline released")
	})
}

// leg is one side of a paired pipeline: the peer connection, its endpoint,
// the outbound track fed by the partner, and an optional recorder.
type leg struct {
	user string
	pc   *webrtc.PeerConnection
	ep   *endpoint

	// out is this leg's outbound track; peerOut is the partner's, which
	// this leg's inbound audio is relayed into.
	out     *webrtc.TrackLocalStaticRTP
	peerOut *webrtc.TrackLocalStaticRTP

	recMu sync.Mutex
	rec   *oggwriter.OggWriter
}

// relay pumps RTP from the remote track into the partner's outbound track
// and, when recording, into the recorder. Runs until the pipeline is
// released or the track ends.
func (l *leg) relay(ctx context.Context, track *webrtc.TrackRemote) {
	logger := log.With().Str("module", "engine").Str("user", l.user).Logger()
	logger.Info().Str("codec", track.Codec().MimeType).Msg("relay started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("relay ctx done")
			return
		default:
		}

		pkt, _, err := track.ReadRTP()
		if err != nil {
			logger.Debug().Err(err).Msg("relay read ended")
			return
		}
		if l.peerOut != nil {
			if err := l.peerOut.WriteRTP(pkt); err != nil {
				logger.Debug().Err(err).Msg("relay write failed")
			}
		}
		l.record(pkt)
	}
}

func (l *leg) record(pkt *rtp.Packet) {
	l.recMu.Lock()
	defer l.recMu.Unlock()
	if l.rec == nil {
		return
	}
	if err := l.rec.WriteRTP(pkt); err != nil {
		log.Warn().Err(err).Str("module", "engine").Str("user", l.user).Msg("recording write failed")
	}
}

// startRecording opens <dir>/<user>.ogg and starts capturing this leg's
// inbound audio. The file is overwritten on every new call, so play always
// serves the latest recording.
func (l *leg) startRecording(dir string) error {
	path := filepath.Join(dir, l.user+".ogg")
	w, err := oggwriter.New(path, opusSampleRate, opusChannels)
	if err != nil {
		return fmt.Errorf("recorder for %s: %w", l.user, err)
	}

	l.recMu.Lock()
	defer l.recMu.Unlock()
	if l.rec != nil {
		_ = l.rec.Close()
	}
	l.rec = w
	log.Info().Str("module", "engine").Str("user", l.user).Str("path", path).Msg("recording started")
	return nil
}

func (l *leg) close() {
	l.recMu.Lock()
	if l.rec != nil {
		_ = l.rec.Close()
		l.rec = nil
	}
	l.recMu.Unlock()

	if err := l.pc.Close(); err != nil {
		log.Debug().Err(err).Str("module", "engine").Str("user", l.user).Msg("peer connection close error")
	}
}
