package service

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/converti/converti-api/internal/core"
	"github.com/converti/converti-api/internal/data"
	"github.com/converti/converti-api/internal/domain/model"
	apperrors "github.com/converti/converti-api/internal/errors"
	"github.com/converti/converti-api/internal/mocks"
	"github.com/converti/converti-api/internal/observability/statsd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fakeDispatcher struct {
	mu      sync.Mutex
	catalog map[model.Category][]string
	convert func(ctx context.Context, req model.ConversionRequest) error
	calls   []model.ConversionRequest
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{
		catalog: map[model.Category][]string{
			model.CategoryImages: {"jpg", "png"},
			model.CategoryAudio:  {"mp3"},
		},
	}
}

func (f *fakeDispatcher) Catalog() map[model.Category][]string {
	return f.catalog
}

func (f *fakeDispatcher) Supports(category model.Category, format string) bool {
	for _, v := range f.catalog[category] {
		if v == format {
			return true
		}
	}
	return false
}

func (f *fakeDispatcher) Convert(ctx context.Context, req model.ConversionRequest) error {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	fn := f.convert
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return os.WriteFile(req.OutputPath, []byte("converted"), 0o644)
}

func (f *fakeDispatcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeQueue struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (q *fakeQueue) Enqueue(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, id)
	return nil
}

// hookedRegistry runs afterUpdate once, after the first successful Update
// returns, to interleave another caller between two registry operations.
type hookedRegistry struct {
	core.JobRegistry
	mu          sync.Mutex
	afterUpdate func()
}

func (r *hookedRegistry) Update(id string, fn func(*model.Job) error) (model.Job, error) {
	job, err := r.JobRegistry.Update(id, fn)
	if err != nil {
		return job, err
	}
	r.mu.Lock()
	hook := r.afterUpdate
	r.afterUpdate = nil
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	return job, nil
}

type conversionHarness struct {
	svc      *ConversionService
	registry *data.JobRegistry
	storage  *data.JobStorage
	queue    *fakeQueue
	disp     *fakeDispatcher
	metrics  *statsd.Recorder
}

func newConversionHarness(t *testing.T, mutate ...func(*ConversionServiceOptions)) *conversionHarness {
	t.Helper()

	storage, err := data.NewJobStorage(filepath.Join(t.TempDir(), "jobs"))
	require.NoError(t, err)

	h := &conversionHarness{
		registry: data.NewJobRegistry(data.JobRegistryOptions{}),
		storage:  storage,
		queue:    &fakeQueue{},
		disp:     newFakeDispatcher(),
		metrics:  &statsd.Recorder{},
	}
	opts := ConversionServiceOptions{
		Registry:   h.registry,
		Storage:    h.storage,
		Queue:      h.queue,
		Dispatcher: h.disp,
		Metrics:    h.metrics,
	}
	for _, fn := range mutate {
		fn(&opts)
	}

	h.svc, err = NewConversionService(opts)
	require.NoError(t, err)
	return h
}

func upload(name, content string) Upload {
	return Upload{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func (h *conversionHarness) submit(t *testing.T, names ...string) model.Job {
	t.Helper()
	files := make([]Upload, len(names))
	for i, n := range names {
		files[i] = upload(n, "payload-"+n)
	}
	job, err := h.svc.Submit(context.Background(), SubmitRequest{
		Category:     "images",
		TargetFormat: "jpg",
		Files:        files,
	})
	require.NoError(t, err)
	return job
}

func TestNewConversionService(t *testing.T) {
	storage, err := data.NewJobStorage(t.TempDir())
	require.NoError(t, err)
	full := ConversionServiceOptions{
		Registry:   data.NewJobRegistry(data.JobRegistryOptions{}),
		Storage:    storage,
		Queue:      &fakeQueue{},
		Dispatcher: newFakeDispatcher(),
	}

	tests := []struct {
		name    string
		mutate  func(*ConversionServiceOptions)
		wantErr string
	}{
		{name: "valid", mutate: func(*ConversionServiceOptions) {}},
		{name: "missing registry", mutate: func(o *ConversionServiceOptions) { o.Registry = nil }, wantErr: "JobRegistry is required"},
		{name: "missing storage", mutate: func(o *ConversionServiceOptions) { o.Storage = nil }, wantErr: "JobStorage is required"},
		{name: "missing queue", mutate: func(o *ConversionServiceOptions) { o.Queue = nil }, wantErr: "JobQueue is required"},
		{name: "missing dispatcher", mutate: func(o *ConversionServiceOptions) { o.Dispatcher = nil }, wantErr: "ConversionDispatcher is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := full
			tt.mutate(&opts)
			svc, err := NewConversionService(opts)
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				assert.Nil(t, svc)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}

func TestConversionService_SubmitValidation(t *testing.T) {
	tests := []struct {
		name  string
		req   SubmitRequest
		field string
		msg   string
	}{
		{
			name:  "unknown category",
			req:   SubmitRequest{Category: "spreadsheets", TargetFormat: "csv", Files: []Upload{upload("a.xls", "x")}},
			field: "category",
			msg:   "Unsupported category 'spreadsheets'",
		},
		{
			name:  "category without capability",
			req:   SubmitRequest{Category: "video", TargetFormat: "mp4", Files: []Upload{upload("a.mov", "x")}},
			field: "category",
			msg:   "Unsupported category 'video'",
		},
		{
			name:  "unsupported format",
			req:   SubmitRequest{Category: "images", TargetFormat: "GIF", Files: []Upload{upload("a.png", "x")}},
			field: "target_format",
			msg:   "Unsupported target format 'gif'",
		},
		{
			name:  "no files",
			req:   SubmitRequest{Category: "images", TargetFormat: "jpg"},
			field: "files",
			msg:   "No files were provided for conversion",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newConversionHarness(t)
			_, err := h.svc.Submit(context.Background(), tt.req)

			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Equal(t, tt.field, apperrors.GetField(err))
			assert.Equal(t, tt.msg, err.Error())
			assert.Empty(t, h.registry.List())
			assert.Empty(t, h.queue.ids)
		})
	}
}

func TestConversionService_Submit(t *testing.T) {
	h := newConversionHarness(t)

	job, err := h.svc.Submit(context.Background(), SubmitRequest{
		Category:     "images",
		TargetFormat: " JPG ",
		Files: []Upload{
			upload("photo.png", "one"),
			upload("photo.png", "two"),
			upload(`C:\Users\me\scan.PNG`, "three"),
			upload("", "four"),
			upload("../../etc/passwd", "five"),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "jpg", job.TargetFormat)
	assert.Equal(t, model.JobStatusPending, job.Status)
	assert.Equal(t, 5, job.TotalFiles)
	assert.Equal(t, []string{job.ID}, h.queue.ids)

	wantSources := []string{"photo.png", "photo.png", "scan.PNG", "file_3", "passwd"}
	wantStored := []string{"photo.png", "photo_1.png", "scan.PNG", "file_3", "passwd"}
	wantOutputs := []string{"photo.jpg", "photo_1.jpg", "scan.jpg", "file_3.jpg", "passwd.jpg"}
	wantContent := []string{"one", "two", "three", "four", "five"}
	require.Len(t, job.Results, 5)
	for i, r := range job.Results {
		assert.Equal(t, wantSources[i], r.SourceName)
		assert.Equal(t, wantOutputs[i], r.OutputName)
		assert.Equal(t, model.JobStatusPending, r.Status)
		assert.Equal(t, filepath.Join(h.storage.InputDir(job.ID), wantStored[i]), r.SourcePath)
		assert.Equal(t, filepath.Join(h.storage.OutputDir(job.ID), wantOutputs[i]), r.OutputPath)

		got, err := os.ReadFile(r.SourcePath)
		require.NoError(t, err)
		assert.Equal(t, wantContent[i], string(got))
	}

	submitted := h.metrics.Named("job.transition")
	require.Len(t, submitted, 1)
	assert.Equal(t, "submitted", submitted[0].Tags["transition"])
	assert.Equal(t, "images", submitted[0].Tags["job_type"])
}

func TestConversionService_SubmitRollsBack(t *testing.T) {
	t.Run("queue full is unavailable", func(t *testing.T) {
		h := newConversionHarness(t)
		h.queue.err = model.ErrQueueFull

		_, err := h.svc.Submit(context.Background(), SubmitRequest{
			Category: "images", TargetFormat: "png", Files: []Upload{upload("a.jpg", "x")},
		})

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeUnavailable, apperrors.GetCode(err))
		assert.Empty(t, h.registry.List())
		dirs, err := h.storage.ListJobDirs()
		require.NoError(t, err)
		assert.Empty(t, dirs)
	})

	t.Run("unreadable upload is internal", func(t *testing.T) {
		h := newConversionHarness(t)
		broken := Upload{Name: "b.jpg", Open: func() (io.ReadCloser, error) {
			return nil, errors.New("stream reset")
		}}

		_, err := h.svc.Submit(context.Background(), SubmitRequest{
			Category: "images", TargetFormat: "png", Files: []Upload{upload("a.jpg", "x"), broken},
		})

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInternal, apperrors.GetCode(err))
		assert.Empty(t, h.registry.List())
		assert.Empty(t, h.queue.ids)
		dirs, err := h.storage.ListJobDirs()
		require.NoError(t, err)
		assert.Empty(t, dirs)
	})
}

func TestConversionService_Process(t *testing.T) {
	t.Run("all files convert", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		events := mocks.NewMockEventPublisher(ctrl)
		var published []model.JobEvent
		events.EXPECT().Publish(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, ev model.JobEvent) error {
				published = append(published, ev)
				return nil
			}).Times(1)

		h := newConversionHarness(t, func(o *ConversionServiceOptions) { o.Events = events })
		job := h.submit(t, "a.png", "b.png")

		h.svc.Process(context.Background(), job.ID)

		got, err := h.svc.Get(job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, got.Status)
		assert.Nil(t, got.Error)
		assert.Equal(t, 2, got.ProcessedFiles)
		assert.InDelta(t, 1.0, got.Progress(), 0.0001)
		for _, r := range got.Results {
			assert.Equal(t, model.JobStatusCompleted, r.Status)
			assert.FileExists(t, r.OutputPath)
		}

		require.Len(t, published, 1)
		assert.Equal(t, model.JobEventCompleted, published[0].Type)
		assert.Equal(t, job.ID, published[0].Job.JobID)

		files := h.metrics.Named("file.converted")
		require.Len(t, files, 2)
		assert.Equal(t, "success", files[0].Tags["result"])
	})

	t.Run("declared and unexpected failures are recorded per file", func(t *testing.T) {
		h := newConversionHarness(t)
		h.disp.convert = func(_ context.Context, req model.ConversionRequest) error {
			switch filepath.Base(req.SourcePath) {
			case "bad.png":
				return model.NewConversionError("Unsupported image file: bad.png")
			case "boom.png":
				panic("decoder exploded")
			case "odd.png":
				return errors.New("disk on fire")
			}
			return os.WriteFile(req.OutputPath, []byte("ok"), 0o644)
		}
		job := h.submit(t, "good.png", "bad.png", "boom.png", "odd.png")

		h.svc.Process(context.Background(), job.ID)

		got, err := h.svc.Get(job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, got.Status)
		require.NotNil(t, got.Error)
		assert.Equal(t, "3 file(s) failed during conversion", *got.Error)
		assert.Equal(t, 4, got.ProcessedFiles)

		assert.Equal(t, model.JobStatusCompleted, got.Results[0].Status)
		assert.Nil(t, got.Results[0].Error)
		assert.Equal(t, "Unsupported image file: bad.png", *got.Results[1].Error)
		assert.Equal(t, "Unexpected error: panic: decoder exploded", *got.Results[2].Error)
		assert.Equal(t, "Unexpected error: disk on fire", *got.Results[3].Error)

		assert.FileExists(t, got.Results[0].OutputPath)
	})

	t.Run("all files failing removes outputs but keeps the job", func(t *testing.T) {
		h := newConversionHarness(t)
		h.disp.convert = func(_ context.Context, req model.ConversionRequest) error {
			_ = os.WriteFile(req.OutputPath, []byte("partial"), 0o644)
			return model.NewConversionError("ffmpeg exploded")
		}
		job := h.submit(t, "a.png", "b.png")

		h.svc.Process(context.Background(), job.ID)

		got, err := h.svc.Get(job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, got.Status)
		assert.Equal(t, "2 file(s) failed during conversion", *got.Error)

		_, statErr := os.Stat(h.storage.OutputDir(job.ID))
		assert.True(t, errors.Is(statErr, fs.ErrNotExist))
		assert.DirExists(t, h.storage.InputDir(job.ID))

		transitions := h.metrics.Named("job.transition")
		last := transitions[len(transitions)-1]
		assert.Equal(t, "failed", last.Tags["transition"])
		assert.Equal(t, "error", last.Tags["result"])
	})

	t.Run("unknown job is ignored", func(t *testing.T) {
		h := newConversionHarness(t)
		h.svc.Process(context.Background(), "ghost")
		assert.Zero(t, h.disp.callCount())
	})
}

func TestConversionService_CancelWhileProcessing(t *testing.T) {
	ctrl := gomock.NewController(t)
	events := mocks.NewMockEventPublisher(ctrl)
	var published []model.JobEvent
	events.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ev model.JobEvent) error {
			published = append(published, ev)
			return nil
		}).Times(1)

	h := newConversionHarness(t, func(o *ConversionServiceOptions) { o.Events = events })

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	h.disp.convert = func(_ context.Context, req model.ConversionRequest) error {
		once.Do(func() { close(started) })
		<-release
		return os.WriteFile(req.OutputPath, []byte("ok"), 0o644)
	}
	job := h.submit(t, "a.png", "b.png", "c.png")

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.svc.Process(context.Background(), job.ID)
	}()

	<-started
	res, err := h.svc.Delete(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, DeleteResult{Cancelling: true}, res)

	snap, err := h.svc.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, snap.Status)

	again, err := h.svc.Delete(context.Background(), job.ID)
	require.NoError(t, err)
	assert.True(t, again.Cancelling)

	close(release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}

	assert.Equal(t, 1, h.disp.callCount(), "no file should start after the cancel")
	_, err = h.svc.Get(job.ID)
	assert.True(t, apperrors.IsNotFound(err))
	_, statErr := os.Stat(h.storage.JobDir(job.ID))
	assert.True(t, errors.Is(statErr, fs.ErrNotExist))

	require.Len(t, published, 1)
	ev := published[0]
	assert.Equal(t, model.JobEventCancelled, ev.Type)
	assert.Equal(t, model.JobStatusCancelled, ev.Job.Status)
	assert.Equal(t, model.CancelledJobMessage, *ev.Job.Error)
	assert.Equal(t, 1, ev.Job.ProcessedFiles)
	assert.Equal(t, model.JobStatusCompleted, ev.Job.Results[0].Status)
	for _, r := range ev.Job.Results[1:] {
		assert.Equal(t, model.JobStatusCancelled, r.Status)
		assert.Equal(t, model.CancelledFileMessage, *r.Error)
	}
}

func TestConversionService_Delete(t *testing.T) {
	t.Run("unknown job is not found", func(t *testing.T) {
		h := newConversionHarness(t)
		_, err := h.svc.Delete(context.Background(), "ghost")
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("pending job is cancelled and removed at once", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		events := mocks.NewMockEventPublisher(ctrl)
		events.EXPECT().Publish(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, ev model.JobEvent) error {
				assert.Equal(t, model.JobEventCancelled, ev.Type)
				return nil
			}).Times(1)

		h := newConversionHarness(t, func(o *ConversionServiceOptions) { o.Events = events })
		job := h.submit(t, "a.png")

		res, err := h.svc.Delete(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, DeleteResult{Deleted: true}, res)

		_, err = h.svc.Get(job.ID)
		assert.True(t, apperrors.IsNotFound(err))
		_, statErr := os.Stat(h.storage.JobDir(job.ID))
		assert.True(t, errors.Is(statErr, fs.ErrNotExist))

		// The queued id is still delivered to a worker later.
		h.svc.Process(context.Background(), job.ID)
		assert.Zero(t, h.disp.callCount())
	})

	t.Run("worker claiming a pending job mid-delete converts nothing", func(t *testing.T) {
		hooked := &hookedRegistry{}
		h := newConversionHarness(t, func(o *ConversionServiceOptions) {
			hooked.JobRegistry = o.Registry
			o.Registry = hooked
		})
		job := h.submit(t, "a.png", "b.png")

		hooked.afterUpdate = func() { h.svc.Process(context.Background(), job.ID) }

		res, err := h.svc.Delete(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, DeleteResult{Deleted: true}, res)
		assert.Zero(t, h.disp.callCount())
		assert.Empty(t, h.registry.List())
		assert.NoDirExists(t, h.storage.JobDir(job.ID))
	})

	t.Run("finished job is removed", func(t *testing.T) {
		h := newConversionHarness(t)
		job := h.submit(t, "a.png")
		h.svc.Process(context.Background(), job.ID)

		res, err := h.svc.Delete(context.Background(), job.ID)
		require.NoError(t, err)
		assert.True(t, res.Deleted)
		assert.Empty(t, h.registry.List())

		_, err = h.svc.Delete(context.Background(), job.ID)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestConversionService_MirrorsStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockCacheRepository(ctrl)

	var mu sync.Mutex
	last := map[string][]byte{}
	cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), 3*time.Hour).
		DoAndReturn(func(_ context.Context, key string, value []byte, _ time.Duration) error {
			mu.Lock()
			last[key] = value
			mu.Unlock()
			return nil
		}).AnyTimes()

	h := newConversionHarness(t, func(o *ConversionServiceOptions) {
		o.Cache = cache
		o.CacheTTL = 3 * time.Hour
	})
	job := h.submit(t, "a.png")
	h.svc.Process(context.Background(), job.ID)

	mu.Lock()
	payload := last[core.JobCacheKey(job.ID)]
	mu.Unlock()

	var view model.JobView
	require.NoError(t, json.Unmarshal(payload, &view))
	assert.Equal(t, job.ID, view.JobID)
	assert.Equal(t, model.JobStatusCompleted, view.Status)
	assert.Equal(t, 1, view.ProcessedFiles)

	cache.EXPECT().Delete(gomock.Any(), core.JobCacheKey(job.ID)).Return(true, nil).Times(1)
	require.NoError(t, h.svc.Remove(context.Background(), job.ID))
}

func TestConversionService_Remove(t *testing.T) {
	ctrl := gomock.NewController(t)
	archives := mocks.NewMockArchiveStore(ctrl)
	archives.EXPECT().DeleteArchive(gomock.Any(), gomock.Any()).Return(errors.New("bucket offline")).Times(2)

	h := newConversionHarness(t, func(o *ConversionServiceOptions) { o.Archives = archives })
	job := h.submit(t, "a.png")

	require.NoError(t, h.svc.Remove(context.Background(), job.ID))
	require.NoError(t, h.svc.Remove(context.Background(), job.ID))

	_, ok := h.registry.Get(job.ID)
	assert.False(t, ok)
	_, err := os.Stat(h.storage.JobDir(job.ID))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestConversionService_Archive(t *testing.T) {
	t.Run("unknown and unfinished jobs are rejected", func(t *testing.T) {
		h := newConversionHarness(t)
		_, err := h.svc.Archive(context.Background(), "ghost")
		assert.True(t, apperrors.IsNotFound(err))

		job := h.submit(t, "a.png")
		_, err = h.svc.Archive(context.Background(), job.ID)
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
		assert.Equal(t, "Job is not completed yet", err.Error())
	})

	t.Run("concurrent requests build and replicate once", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		archives := mocks.NewMockArchiveStore(ctrl)

		h := newConversionHarness(t, func(o *ConversionServiceOptions) { o.Archives = archives })
		job := h.submit(t, "a.png", "b.png")
		h.svc.Process(context.Background(), job.ID)

		archives.EXPECT().PutArchive(gomock.Any(), job.ID, h.storage.ArchivePath(job.ID)).Return(nil).Times(1)

		var wg sync.WaitGroup
		paths := make([]string, 8)
		errs := make([]error, 8)
		for i := range paths {
			wg.Add(1)
			go func() {
				defer wg.Done()
				paths[i], errs[i] = h.svc.Archive(context.Background(), job.ID)
			}()
		}
		wg.Wait()

		for i := range paths {
			require.NoError(t, errs[i])
			assert.Equal(t, h.storage.ArchivePath(job.ID), paths[i])
		}

		zr, err := zip.OpenReader(paths[0])
		require.NoError(t, err)
		defer zr.Close()
		var names []string
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		assert.ElementsMatch(t, []string{"a.jpg", "b.jpg"}, names)
	})

	t.Run("missing outputs are not found", func(t *testing.T) {
		h := newConversionHarness(t)
		job := h.submit(t, "a.png")
		h.svc.Process(context.Background(), job.ID)
		require.NoError(t, os.RemoveAll(h.storage.OutputDir(job.ID)))

		_, err := h.svc.Archive(context.Background(), job.ID)
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
		assert.Equal(t, "Converted files not found", err.Error())
	})
}

func TestConversionService_OutputFile(t *testing.T) {
	h := newConversionHarness(t)
	h.disp.convert = func(_ context.Context, req model.ConversionRequest) error {
		if filepath.Base(req.SourcePath) == "bad.png" {
			return model.NewConversionError("nope")
		}
		return os.WriteFile(req.OutputPath, []byte("ok"), 0o644)
	}
	job := h.submit(t, "good.png", "bad.png", "gone.png")
	h.svc.Process(context.Background(), job.ID)
	require.NoError(t, os.Remove(filepath.Join(h.storage.OutputDir(job.ID), "gone.jpg")))

	res, err := h.svc.OutputFile(job.ID, "../../good.jpg")
	require.NoError(t, err)
	assert.Equal(t, "good.jpg", res.OutputName)

	tests := []struct {
		name     string
		id       string
		filename string
		msg      string
	}{
		{name: "unknown job", id: "ghost", filename: "good.jpg", msg: "Job not found"},
		{name: "unknown file", id: job.ID, filename: "other.jpg", msg: "File not found for this job"},
		{name: "failed file", id: job.ID, filename: "bad.jpg", msg: "File not found for this job"},
		{name: "missing on disk", id: job.ID, filename: "gone.jpg", msg: "Converted file missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.OutputFile(tt.id, tt.filename)
			require.Error(t, err)
			assert.True(t, apperrors.IsNotFound(err))
			assert.Equal(t, tt.msg, err.Error())
		})
	}
}

func TestUploadNaming(t *testing.T) {
	t.Run("safe names", func(t *testing.T) {
		tests := map[string]string{
			"photo.png":           "photo.png",
			"dir/sub/photo.png":   "photo.png",
			`C:\tmp\photo.png`:    "photo.png",
			"":                    "file_7",
			".":                   "file_7",
			"..":                  "file_7",
			"/":                   "file_7",
			"  spaced name.txt  ": "spaced name.txt",
			"../../../etc/shadow": "shadow",
			"archive.tar.gz":      "archive.tar.gz",
		}
		for in, want := range tests {
			assert.Equal(t, want, safeUploadName(in, 7), in)
		}
	})

	t.Run("output names", func(t *testing.T) {
		assert.Equal(t, "photo.jpg", outputName("photo.png", "jpg"))
		assert.Equal(t, "archive.tar.pdf", outputName("archive.tar.gz", "pdf"))
		assert.Equal(t, "README.html", outputName("README", "html"))
		assert.Equal(t, ".env.txt", outputName(".env", "txt"))
	})

	t.Run("unique names", func(t *testing.T) {
		taken := map[string]struct{}{}
		var got []string
		for range 3 {
			n := uniqueName("a.jpg", taken)
			taken[n] = struct{}{}
			got = append(got, n)
		}
		assert.Equal(t, []string{"a.jpg", "a_1.jpg", "a_2.jpg"}, got)

		taken = map[string]struct{}{"notes": {}}
		assert.Equal(t, "notes_1", uniqueName("notes", taken))
	})
}
