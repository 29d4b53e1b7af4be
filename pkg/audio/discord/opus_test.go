package discord

import "testing"

func TestBytesToInt16s(t *testing.T) {
	t.Parallel()

	b := []byte{0x01, 0x00, 0xFF, 0xFF, 0x00, 0x80}
	got := bytesToInt16s(b)
	want := []int16{1, -1, -32768}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestScaleVolume(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     []int16
		volume float64
		want   []int16
	}{
		{"unity leaves samples", []int16{100, -100}, 1, []int16{100, -100}},
		{"half", []int16{100, -100}, 0.5, []int16{50, -50}},
		{"double clamps high", []int16{30000, -30000}, 2, []int16{32767, -32768}},
		{"mute", []int16{123, -123}, 0, []int16{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pcm := make([]int16, len(tt.in))
			copy(pcm, tt.in)
			scaleVolume(pcm, tt.volume)
			for i := range tt.want {
				if pcm[i] != tt.want[i] {
					t.Errorf("sample %d = %d, want %d", i, pcm[i], tt.want[i])
				}
			}
		})
	}
}
