package recognition

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"smartattendance/internal/apiclient"
	"smartattendance/internal/faceclient"
	"smartattendance/internal/liveness"
	"smartattendance/internal/logger"
	"smartattendance/internal/metrics"
	"smartattendance/internal/queue"
)

// Identity prefixes the face gallery is enrolled with.
const (
	FacultyPrefix = "faculty_"
	StudentPrefix = "student_"
)

// Faces is the face-recognition collaborator.
type Faces interface {
	Identify(ctx context.Context, imageURL string) (faceclient.SearchMatch, error)
	Liveness(ctx context.Context, imageURL string) (*faceclient.LivenessResult, error)
}

// Dispatcher forwards verified sightings to the attendance API.
type Dispatcher interface {
	StartClass(ctx context.Context, facultyID string) (apiclient.Reply, error)
	LogStudentEntry(ctx context.Context, userID string) (apiclient.Reply, error)
}

// Sighting is what happened to one face region.
type Sighting struct {
	Region     string
	Identity   string
	Verdict    liveness.Verdict
	Dispatched bool
	Message    string
	Err        error
}

// Pipeline turns camera frames into attendance API calls. Each region is
// identified, checked for liveness and voted into the aggregator; identities
// that reach a VerifiedReal verdict are dispatched by prefix.
type Pipeline struct {
	faces       Faces
	votes       *liveness.Aggregator
	api         Dispatcher
	concurrency int
	log         *zap.Logger
}

// New creates a pipeline. concurrency bounds in-flight regions per frame.
func New(faces Faces, votes *liveness.Aggregator, api Dispatcher, concurrency int, log *zap.Logger) *Pipeline {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pipeline{faces: faces, votes: votes, api: api, concurrency: concurrency, log: logger.OrNop(log)}
}

// Run processes frames until the channel closes or ctx is done.
func (p *Pipeline) Run(ctx context.Context, frames <-chan queue.Frame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			p.ProcessFrame(ctx, f)
		}
	}
}

// ProcessFrame handles every region of f and returns one Sighting per region
// in region order. A failing region is skipped; it never fails the frame.
func (p *Pipeline) ProcessFrame(ctx context.Context, f queue.Frame) []Sighting {
	out := make([]Sighting, len(f.Regions))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, region := range f.Regions {
		g.Go(func() error {
			out[i] = p.processRegion(ctx, region)
			return nil
		})
	}
	_ = g.Wait()

	p.log.Debug("frame processed", zap.String("frame_id", f.ID),
		zap.String("device_id", f.DeviceID), zap.Int("regions", len(f.Regions)),
		zap.Int("tracked_identities", p.votes.Len()))
	return out
}

func (p *Pipeline) processRegion(ctx context.Context, region string) Sighting {
	s := Sighting{Region: region}

	match, err := p.faces.Identify(ctx, region)
	if errors.Is(err, faceclient.ErrNoMatch) {
		return s
	}
	if err != nil {
		return p.skip(s, "identify", err)
	}
	s.Identity = match.UserID

	live, err := p.faces.Liveness(ctx, region)
	if err != nil {
		return p.skip(s, "liveness", err)
	}
	s.Verdict = p.votes.Observe(s.Identity, live.IsLive)
	metrics.LivenessVerdicts.WithLabelValues(s.Verdict.String()).Inc()
	if s.Verdict != liveness.VerifiedReal {
		return s
	}

	var reply apiclient.Reply
	switch {
	case strings.HasPrefix(s.Identity, FacultyPrefix):
		reply, err = p.api.StartClass(ctx, s.Identity)
	case strings.HasPrefix(s.Identity, StudentPrefix):
		reply, err = p.api.LogStudentEntry(ctx, s.Identity)
	default:
		p.log.Debug("verified identity has no role prefix", zap.String("identity", s.Identity))
		return s
	}
	if err != nil {
		return p.skip(s, "dispatch", err)
	}
	s.Dispatched = true
	s.Message = reply.Message
	p.log.Info("sighting dispatched",
		zap.String("identity", s.Identity), zap.Int("status", reply.StatusCode), zap.String("message", reply.Message))
	return s
}

func (p *Pipeline) skip(s Sighting, stage string, err error) Sighting {
	metrics.RecognitionErrors.WithLabelValues(stage).Inc()
	p.log.Warn("skipping region", zap.String("stage", stage),
		zap.String("identity", s.Identity), zap.Error(err))
	s.Err = err
	return s
}
