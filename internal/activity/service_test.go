package activity

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vaulttrail/internal/storage"
)

// ServiceSuite exercises the lifecycle manager against a real in-memory
// backend, no mocks. The injectable clock keeps duration math deterministic.
type ServiceSuite struct {
	suite.Suite
	kv      *storage.InMemoryKV
	store   *BlobStore
	service *Service
	clock   time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.kv = storage.NewInMemoryKV()

	var err error
	s.store, err = NewBlobStore(s.kv)
	s.Require().NoError(err)

	s.clock = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	s.service, err = New(s.store, WithClock(func() time.Time { return s.clock }))
	s.Require().NoError(err)
}

func (s *ServiceSuite) advance(d time.Duration) {
	s.clock = s.clock.Add(d)
}

func (s *ServiceSuite) load() []Log {
	logs, err := s.store.Load(context.Background())
	s.Require().NoError(err)
	return logs
}

// =============================================================================
// LogActivity
// =============================================================================

func (s *ServiceSuite) TestLogActivity() {
	ctx := context.Background()

	s.Run("assigns id, timestamp, and default success status", func() {
		id, err := s.service.LogActivity(ctx, TypeDocumentCreated, "Creating doc X")
		s.NoError(err)
		s.NotEmpty(id)

		logs := s.load()
		s.Require().Len(logs, 1)
		s.Equal(id, logs[0].ID)
		s.Equal(s.clock.UnixMilli(), logs[0].Timestamp)
		s.Equal(StatusSuccess, logs[0].Status)
		s.Nil(logs[0].Duration, "duration must be absent until completion")
	})

	s.Run("prepends records newest first", func() {
		first, err := s.service.LogActivity(ctx, TypeDocumentRead, "first")
		s.Require().NoError(err)
		s.advance(time.Second)
		second, err := s.service.LogActivity(ctx, TypeDocumentRead, "second")
		s.Require().NoError(err)

		logs := s.load()
		s.Equal(second, logs[0].ID)
		s.Equal(first, logs[1].ID)
	})

	s.Run("applies creation options", func() {
		id, err := s.service.LogActivity(ctx, TypePermissionGranted, "granted",
			WithStatus(StatusWarning),
			WithDetails(map[string]any{"grantee": "did:nil:abc"}),
			WithUserDID("did:nil:owner"),
			WithMetadata(&Metadata{IPAddress: "10.0.0.1"}),
		)
		s.Require().NoError(err)

		logs := s.load()
		s.Equal(id, logs[0].ID)
		s.Equal(StatusWarning, logs[0].Status)
		s.Equal("did:nil:owner", logs[0].UserDID)
		s.Equal("did:nil:abc", logs[0].Details["grantee"])
		s.Equal("10.0.0.1", logs[0].Metadata.IPAddress)
	})

	s.Run("propagates storage failures to the caller", func() {
		s.kv.FailWrites = true
		defer func() { s.kv.FailWrites = false }()

		_, err := s.service.LogActivity(ctx, TypeDocumentCreated, "doomed")
		s.ErrorIs(err, storage.ErrUnavailable)
	})
}

// =============================================================================
// Retention
// =============================================================================

func (s *ServiceSuite) TestRetentionEviction() {
	ctx := context.Background()

	store, err := NewBlobStore(s.kv, WithMaxLogs(5), WithStorageKey("retention_test"))
	s.Require().NoError(err)
	svc, err := New(store, WithClock(func() time.Time { return s.clock }))
	s.Require().NoError(err)

	var newest string
	for i := 0; i < 8; i++ {
		s.advance(time.Millisecond)
		newest, err = svc.LogActivity(ctx, TypeCollectionViewed, fmt.Sprintf("view %d", i))
		s.Require().NoError(err)
	}

	logs, err := store.Load(ctx)
	s.Require().NoError(err)
	s.Len(logs, 5, "collection must never exceed the retention bound")
	s.Equal(newest, logs[0].ID, "the newest record is always retained")
	s.Equal("view 3", logs[4].Description, "oldest records are evicted first")
}

// =============================================================================
// AddSubStep
// =============================================================================

func (s *ServiceSuite) TestAddSubStep() {
	ctx := context.Background()

	s.Run("orders are strictly increasing from 1 with no gaps", func() {
		id, err := s.service.LogActivity(ctx, TypeAutofillExecuted, "autofill")
		s.Require().NoError(err)

		s.service.AddSubStep(ctx, id, "locate fields")
		s.service.AddSubStep(ctx, id, "decrypt credential", WithSubStepStatus(SubStepInProgress))
		s.service.AddSubStep(ctx, id, "fill form", WithSubStepDetails(map[string]any{"fields": 2}))

		logs := s.load()
		steps := logs[0].SubSteps
		s.Require().Len(steps, 3)
		for i, st := range steps {
			s.Equal(i+1, st.Order)
		}
		s.Equal(SubStepCompleted, steps[0].Status, "default sub-step status is completed")
		s.Equal(SubStepInProgress, steps[1].Status)
		s.Equal(2, steps[2].Details["fields"])
	})

	s.Run("unknown id is a silent no-op", func() {
		before := s.load()
		s.service.AddSubStep(ctx, "no-such-id", "never recorded")
		s.Equal(before, s.load())
	})

	s.Run("storage failure is swallowed", func() {
		id, err := s.service.LogActivity(ctx, TypeDocumentRead, "read")
		s.Require().NoError(err)

		s.kv.FailWrites = true
		s.NotPanics(func() { s.service.AddSubStep(ctx, id, "lost step") })
		s.kv.FailWrites = false

		logs := s.load()
		s.Empty(logs[0].SubSteps)
	})
}

// =============================================================================
// CompleteActivity
// =============================================================================

func (s *ServiceSuite) TestCompleteActivity() {
	ctx := context.Background()

	s.Run("sets status and duration from the creation timestamp", func() {
		id, err := s.service.LogActivity(ctx, TypeDocumentCreated, "slow create")
		s.Require().NoError(err)

		s.advance(250 * time.Millisecond)
		s.service.CompleteActivity(ctx, id, StatusFailed)

		logs := s.load()
		s.Equal(StatusFailed, logs[0].Status)
		s.Require().NotNil(logs[0].Duration)
		s.Equal(int64(250), *logs[0].Duration)
	})

	s.Run("second completion still measures from the original timestamp", func() {
		id, err := s.service.LogActivity(ctx, TypeDocumentDeleted, "delete")
		s.Require().NoError(err)

		s.advance(100 * time.Millisecond)
		s.service.CompleteActivity(ctx, id, StatusSuccess)
		s.advance(400 * time.Millisecond)
		s.service.CompleteActivity(ctx, id, StatusSuccess)

		logs := s.load()
		s.Require().NotNil(logs[0].Duration)
		s.Equal(int64(500), *logs[0].Duration,
			"duration reflects elapsed time since creation, not since the prior completion")
	})

	s.Run("unknown id is a silent no-op", func() {
		before := s.load()
		s.NotPanics(func() { s.service.CompleteActivity(ctx, "no-such-id", StatusSuccess) })
		s.Equal(before, s.load())
	})

	s.Run("sub-steps may still be appended after completion", func() {
		id, err := s.service.LogActivity(ctx, TypeDocumentRead, "read")
		s.Require().NoError(err)
		s.advance(50 * time.Millisecond)
		s.service.CompleteActivity(ctx, id, StatusSuccess)

		s.service.AddSubStep(ctx, id, "late checkpoint")

		logs := s.load()
		s.Require().Len(logs[0].SubSteps, 1)
		s.Equal(int64(50), *logs[0].Duration, "duration is never recomputed")
	})
}

// =============================================================================
// Full lifecycle scenario
// =============================================================================

func (s *ServiceSuite) TestDocumentCreationScenario() {
	ctx := context.Background()

	id, err := s.service.LogActivity(ctx, TypeDocumentCreated, "Creating doc X")
	s.Require().NoError(err)

	s.service.AddSubStep(ctx, id, "validate title")
	s.service.AddSubStep(ctx, id, "write to store")
	s.advance(10 * time.Millisecond)
	s.service.CompleteActivity(ctx, id, StatusSuccess)

	logs := s.load()
	s.Require().Len(logs, 1)
	record := logs[0]
	s.Require().Len(record.SubSteps, 2)
	s.Equal(1, record.SubSteps[0].Order)
	s.Equal(2, record.SubSteps[1].Order)
	s.Equal(StatusSuccess, record.Status)
	s.Require().NotNil(record.Duration)
	s.GreaterOrEqual(*record.Duration, int64(0))
}

// =============================================================================
// Sink
// =============================================================================

type captureSink struct {
	published []Log
}

func (c *captureSink) Publish(_ context.Context, log Log) {
	c.published = append(c.published, log)
}

func (s *ServiceSuite) TestSinkReceivesCreatedRecords() {
	ctx := context.Background()

	sink := &captureSink{}
	svc, err := New(s.store, WithSink(sink), WithClock(func() time.Time { return s.clock }))
	s.Require().NoError(err)

	id, err := svc.LogActivity(ctx, TypeAppConnected, "app connected")
	s.Require().NoError(err)

	s.Require().Len(sink.published, 1)
	s.Equal(id, sink.published[0].ID)

	s.Run("sink is not invoked when the write fails", func() {
		s.kv.FailWrites = true
		defer func() { s.kv.FailWrites = false }()

		_, err := svc.LogActivity(ctx, TypeAppDisconnected, "app disconnected")
		s.Error(err)
		s.Len(sink.published, 1)
	})
}

// =============================================================================
// Clear
// =============================================================================

func (s *ServiceSuite) TestClear() {
	ctx := context.Background()

	_, err := s.service.LogActivity(ctx, TypeIdentityCreated, "identity")
	s.Require().NoError(err)

	s.Require().NoError(s.service.Clear(ctx))
	s.Empty(s.load())
}

// =============================================================================
// Concurrent mutation
// =============================================================================

// All mutations serialize through the service, so parallel writers must never
// lose each other's read-modify-write cycles against the shared blob.
func (s *ServiceSuite) TestConcurrentMutationsLoseNothing() {
	ctx := context.Background()
	const writers = 50

	s.Run("parallel LogActivity keeps every record", func() {
		ids := make([]string, writers)
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id, err := s.service.LogActivity(ctx, TypeDocumentRead, fmt.Sprintf("read %d", i))
				s.NoError(err)
				ids[i] = id
			}(i)
		}
		wg.Wait()

		logs := s.load()
		s.Require().Len(logs, writers)

		byID := make(map[string]bool, len(logs))
		for _, l := range logs {
			byID[l.ID] = true
		}
		for _, id := range ids {
			s.True(byID[id], "record %s was lost to a concurrent write", id)
		}
	})

	s.Run("parallel sub-steps on one record all land with unique orders", func() {
		id, err := s.service.LogActivity(ctx, TypeAutofillExecuted, "autofill")
		s.Require().NoError(err)

		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				s.service.AddSubStep(ctx, id, fmt.Sprintf("step %d", i))
			}(i)
		}
		wg.Wait()

		logs := s.load()
		record := logs[s.indexOf(logs, id)]
		s.Require().Len(record.SubSteps, writers)

		seen := make(map[int]bool, writers)
		for _, st := range record.SubSteps {
			s.False(seen[st.Order], "order %d assigned twice", st.Order)
			seen[st.Order] = true
			s.GreaterOrEqual(st.Order, 1)
			s.LessOrEqual(st.Order, writers)
		}
	})

	s.Run("completion races with new records without losing either", func() {
		target, err := s.service.LogActivity(ctx, TypeDocumentDeleted, "delete doc")
		s.Require().NoError(err)
		before := len(s.load())

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.service.CompleteActivity(ctx, target, StatusSuccess)
		}()
		go func() {
			defer wg.Done()
			_, err := s.service.LogActivity(ctx, TypeDocumentCreated, "create doc")
			s.NoError(err)
		}()
		wg.Wait()

		logs := s.load()
		s.Len(logs, before+1)
		s.NotNil(logs[s.indexOf(logs, target)].Duration)
	})
}

func (s *ServiceSuite) indexOf(logs []Log, id string) int {
	for i, l := range logs {
		if l.ID == id {
			return i
		}
	}
	s.Require().FailNowf("record not found", "no record with id %s", id)
	return -1
}
