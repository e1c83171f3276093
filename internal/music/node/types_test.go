package node

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestLoadResultTracks(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int
		wantErr error
	}{
		{"search", `{"loadType":"search","data":[{"encoded":"a","info":{"title":"A"}},{"encoded":"b","info":{"title":"B"}}]}`, 2, nil},
		{"track", `{"loadType":"track","data":{"encoded":"a","info":{"title":"A"}}}`, 1, nil},
		{"playlist", `{"loadType":"playlist","data":{"info":{"name":"P"},"tracks":[{"encoded":"a"},{"encoded":"b"},{"encoded":"c"}]}}`, 3, nil},
		{"empty", `{"loadType":"empty","data":{}}`, 0, nil},
		{"error", `{"loadType":"error","data":{"message":"boom","severity":"common"}}`, 0, ErrLoadFailed},
		{"unknown", `{"loadType":"weird","data":null}`, 0, ErrLoadFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res LoadResult
			if err := json.Unmarshal([]byte(tt.body), &res); err != nil {
				t.Fatalf("Expected valid JSON, got %v", err)
			}
			got, err := res.Tracks()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Expected %d tracks, got %d", tt.want, len(got))
			}
		})
	}
}

func TestStopSendsExplicitNullTrack(t *testing.T) {
	body, err := json.Marshal(playerUpdate{Track: &encodedTrack{}})
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != `{"track":{"encoded":null}}` {
		t.Errorf("Expected explicit null track, got %s", body)
	}
}
