package backup_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"repairTracker/internal/backup"
	"repairTracker/internal/repository/inmemory"
	"repairTracker/internal/service"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPutter struct {
	mock.Mock
}

func (m *MockPutter) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

var _ backup.ObjectPutter = (*MockPutter)(nil)

func seededService(t *testing.T) *service.TaskService {
	t.Helper()
	ctx := context.Background()
	store := inmemory.New()
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	svc := service.NewTaskService(store, store, service.WithClock(func() time.Time { return now }))

	rate := 55.0
	c, err := svc.CreateClient(ctx, service.ClientInput{Name: "Ana", HourlyRate: &rate})
	require.NoError(t, err)
	_, _, _, err = svc.AddVehicle(ctx, c.ID, service.VehicleInput{VIN: "1HGCM82633A004352"}, true)
	require.NoError(t, err)
	_, pending, _, err := svc.AddVehicle(ctx, c.ID, service.VehicleInput{VIN: "JH4KA7561PC008269"}, false)
	require.NoError(t, err)
	_, _, err = svc.AddSession(ctx, pending.ID)
	require.NoError(t, err)
	return svc
}

func TestManager_BackupAndRestore(t *testing.T) {
	ctx := context.Background()
	src := seededService(t)

	dir := t.TempDir()
	putter := new(MockPutter)
	putter.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Bucket == "shop" && strings.HasPrefix(*in.Key, "nightly/backup-") && *in.ContentLength > 0
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	mgr := backup.NewManager(src, backup.NewFileSink(dir, 5), backup.NewS3Sink(putter, "shop", "nightly/"))
	name, err := mgr.Backup(ctx)
	require.NoError(t, err)
	putter.AssertExpectations(t)

	f, err := os.Open(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()

	store := inmemory.New()
	dst := service.NewTaskService(store, store)
	require.NoError(t, backup.NewManager(dst).Restore(ctx, f))

	want, err := src.ExportData(ctx)
	require.NoError(t, err)
	got, err := dst.ExportData(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("restored data mismatch (-want +got):\n%s", diff)
	}

	active, err := dst.ActiveTask(ctx)
	require.NoError(t, err)
	require.NotNil(t, active, "the running timer survives a restore")
}

func TestManager_SinkFailureStillWritesOthers(t *testing.T) {
	dir := t.TempDir()
	putter := new(MockPutter)
	putter.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))

	mgr := backup.NewManager(seededService(t), backup.NewS3Sink(putter, "shop", ""), backup.NewFileSink(dir, 0))
	_, err := mgr.Backup(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")

	names, err := backup.NewFileSink(dir, 0).List()
	require.NoError(t, err)
	assert.Len(t, names, 1)
}

func TestManager_NoSinks(t *testing.T) {
	_, err := backup.NewManager(seededService(t)).Backup(context.Background())
	assert.Error(t, err)
}

func TestFileSink_KeepsNewest(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	sink := backup.NewFileSink(dir, 2)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		require.NoError(t, sink.Put(ctx, backup.Name(base.Add(time.Duration(i)*time.Hour)), []byte("x")))
	}

	names, err := sink.List()
	require.NoError(t, err)
	assert.Equal(t, []string{
		backup.Name(base.Add(2 * time.Hour)),
		backup.Name(base.Add(3 * time.Hour)),
	}, names)

	rc, err := sink.Open(names[1])
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{
			name: "empty collections",
			doc:  "format_version: 1\ncreated_at: 2025-06-02T10:00:00Z\nsettings:\n  currency: EUR\n",
		},
		{
			name:    "future format",
			doc:     "format_version: 2\n",
			wantErr: backup.ErrUnsupportedFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := backup.Decode(bytes.NewBufferString(tt.doc))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			d := snap.Dataset()
			assert.Equal(t, "EUR", d.Settings.Currency)
			assert.NotNil(t, d.Tasks)
			assert.Empty(t, d.Clients)
		})
	}
}

func TestRestore_RejectsTwoRunningTasks(t *testing.T) {
	ctx := context.Background()
	src := seededService(t)
	data, err := src.ExportData(ctx)
	require.NoError(t, err)

	second := data.Tasks[0].Clone()
	second.ID = data.Tasks[1].ID
	data.Tasks[1] = second

	var buf bytes.Buffer
	require.NoError(t, backup.Encode(&buf, backup.NewSnapshot(data, time.Now())))

	store := inmemory.New()
	err = backup.NewManager(service.NewTaskService(store, store)).Restore(ctx, &buf)
	var busErr *service.BusinessError
	require.ErrorAs(t, err, &busErr)
	assert.Equal(t, service.CodeValidation, busErr.Code)
}
