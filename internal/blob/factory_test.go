package blob

import (
	"context"
	"path/filepath"
	"testing"

	"jobsdashboard/internal/config"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		cfg  config.Blob
		want Driver
	}{
		{"default is fs", config.Blob{Root: filepath.Join(t.TempDir(), "a")}, DriverFilesystem},
		{"fs", config.Blob{Driver: "fs", Root: filepath.Join(t.TempDir(), "b")}, DriverFilesystem},
		{"memory", config.Blob{Driver: "memory"}, DriverMemory},
		{"s3 static keys", config.Blob{Driver: "s3", Bucket: "archive", Region: "eu-west-1", Endpoint: "http://127.0.0.1:9000", PathStyle: true, AccessKey: "k", SecretKey: "s"}, DriverS3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := Open(ctx, tc.cfg)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			if store.Driver() != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, store.Driver())
			}
		})
	}
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := Open(ctx, config.Blob{Driver: "ftp"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(ctx, config.Blob{Driver: "s3"}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}
