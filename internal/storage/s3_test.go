package storage

import (
	"errors"
	"fmt"
	"runtime"
	"testing"
)

func TestObjectKey(t *testing.T) {
	type in struct {
		config S3Config
		url    string
	}
	type want struct {
		key     string
		outside bool
	}
	tests := []struct {
		name string
		in   in
		want want
	}{
		func() struct {
			name string
			in   in
			want want
		} {
			_, _, line, _ := runtime.Caller(1)
			return struct {
				name string
				in   in
				want want
			}{
				name: fmt.Sprintf("L%d", line),
				in:   in{S3Config{Bucket: "snapshots"}, "s3://snapshots/Snapshot/capture/abc/1.avif"},
				want: want{key: "Snapshot/capture/abc/1.avif"},
			}
		}(),
		func() struct {
			name string
			in   in
			want want
		} {
			_, _, line, _ := runtime.Caller(1)
			return struct {
				name string
				in   in
				want want
			}{
				name: fmt.Sprintf("L%d", line),
				in:   in{S3Config{Bucket: "snapshots", Prefix: "team"}, "s3://snapshots/team/Snapshot/capture/abc/1.avif"},
				want: want{key: "team/Snapshot/capture/abc/1.avif"},
			}
		}(),
		func() struct {
			name string
			in   in
			want want
		} {
			_, _, line, _ := runtime.Caller(1)
			return struct {
				name string
				in   in
				want want
			}{
				name: fmt.Sprintf("L%d", line),
				in:   in{S3Config{Bucket: "snapshots", Prefix: "team"}, "s3://snapshots/other/secret.json"},
				want: want{outside: true},
			}
		}(),
		func() struct {
			name string
			in   in
			want want
		} {
			_, _, line, _ := runtime.Caller(1)
			return struct {
				name string
				in   in
				want want
			}{
				name: fmt.Sprintf("L%d", line),
				in:   in{S3Config{Bucket: "snapshots", Prefix: "team"}, "s3://snapshots/team/../other/secret.json"},
				want: want{outside: true},
			}
		}(),
		func() struct {
			name string
			in   in
			want want
		} {
			_, _, line, _ := runtime.Caller(1)
			return struct {
				name string
				in   in
				want want
			}{
				name: fmt.Sprintf("L%d", line),
				in:   in{S3Config{Bucket: "snapshots"}, "s3://backups/db.sql"},
				want: want{outside: true},
			}
		}(),
		func() struct {
			name string
			in   in
			want want
		} {
			_, _, line, _ := runtime.Caller(1)
			return struct {
				name string
				in   in
				want want
			}{
				name: fmt.Sprintf("L%d", line),
				in:   in{S3Config{Bucket: "snapshots"}, "/etc/passwd"},
				want: want{outside: true},
			}
		}(),
	}
	for _, tt := range tests {
		name := tt.name
		in := tt.in
		want := tt.want
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, err := objectKey(in.config, in.url)
			if want.outside {
				if !errors.Is(err, ErrOutsideStorage) {
					t.Errorf("objectKey(%q) = %q, %v; want ErrOutsideStorage", in.url, got, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != want.key {
				t.Errorf("objectKey(%q) = %q, want %q", in.url, got, want.key)
			}
		})
	}
}
