package apperr

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "op and cause",
			err:  &Error{Kind: KindMetadata, Op: "fetch latest.json", Err: io.EOF},
			want: "[metadata] fetch latest.json: EOF",
		},
		{
			name: "cause only",
			err:  &Error{Kind: KindPersist, Err: io.EOF},
			want: "[persist] EOF",
		},
		{
			name: "message only",
			err:  New(KindConfig, "Invalid level, use 4, 8, 16 or 20"),
			want: "[config] Invalid level, use 4, 8, 16 or 20",
		},
		{
			name: "tile failure",
			err:  TileFetch(FailureStatus, "GET tile", errors.New("status 404")),
			want: "[tile-fetch/status] GET tile: status 404",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKindOfWrapped(t *testing.T) {
	base := TileFetch(FailureDecode, "decode", io.ErrUnexpectedEOF)
	wrapped := fmt.Errorf("tile 1,2: %w", base)

	if got := KindOf(wrapped); got != KindTileFetch {
		t.Errorf("KindOf() = %v, want %v", got, KindTileFetch)
	}
	if got := FailureOf(wrapped); got != FailureDecode {
		t.Errorf("FailureOf() = %v, want %v", got, FailureDecode)
	}
	if !errors.Is(wrapped, io.ErrUnexpectedEOF) {
		t.Error("errors.Is should reach the underlying cause")
	}
	if KindOf(io.EOF) != KindUnknown {
		t.Error("plain errors should have KindUnknown")
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(KindPersist, "save", nil); err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
}

func TestKindFatal(t *testing.T) {
	fatal := []Kind{KindConfig, KindMetadata, KindClock, KindDirectory, KindPersist}
	for _, k := range fatal {
		if !k.Fatal() {
			t.Errorf("%s should be fatal", k)
		}
	}
	for _, k := range []Kind{KindTileFetch, KindPlatform} {
		if k.Fatal() {
			t.Errorf("%s should not be fatal", k)
		}
	}
}
