package archive

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	infraconfig "github.com/possync/backend/internal/infrastructure/config"
)

func TestNewS3PageArchiver_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *infraconfig.ArchiveConfig
		wantErr string
	}{
		{
			name:    "nil config",
			cfg:     nil,
			wantErr: "archive configuration is required",
		},
		{
			name:    "missing bucket",
			cfg:     &infraconfig.ArchiveConfig{AccessKey: "ak", SecretKey: "sk"},
			wantErr: "archive bucket is required",
		},
		{
			name:    "missing access key",
			cfg:     &infraconfig.ArchiveConfig{Bucket: "raw-pages", SecretKey: "sk"},
			wantErr: "archive access key is required",
		},
		{
			name:    "missing secret key",
			cfg:     &infraconfig.ArchiveConfig{Bucket: "raw-pages", AccessKey: "ak"},
			wantErr: "archive secret key is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewS3PageArchiver(tt.cfg, zap.NewNop())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewS3PageArchiver_ValidConfig(t *testing.T) {
	archiver, err := NewS3PageArchiver(&infraconfig.ArchiveConfig{
		Endpoint:     "localhost:9000",
		Bucket:       "raw-pages",
		AccessKey:    "ak",
		SecretKey:    "sk",
		UsePathStyle: true,
	}, zap.NewNop())

	require.NoError(t, err)
	assert.NotNil(t, archiver)
	assert.Equal(t, "raw-pages", archiver.bucket)
}

func TestPageKey(t *testing.T) {
	runID := uuid.MustParse("a3bb189e-8bf9-3888-9912-ace4e6543002")

	assert.Equal(t, "runs/a3bb189e-8bf9-3888-9912-ace4e6543002/page-0000.json", PageKey(runID, 0))
	assert.Equal(t, "runs/a3bb189e-8bf9-3888-9912-ace4e6543002/page-0042.json", PageKey(runID, 42))
}

func TestNormalizeEndpoint(t *testing.T) {
	got, err := normalizeEndpoint("localhost:9000")
	require.NoError(t, err)
	assert.Equal(t, "https://localhost:9000", got)

	got, err = normalizeEndpoint("http://minio.internal:9000")
	require.NoError(t, err)
	assert.Equal(t, "http://minio.internal:9000", got)
}
