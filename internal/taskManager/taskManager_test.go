// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package taskManager

import (
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"2m", 2 * time.Minute, false},
		{"1h", time.Hour, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := parseDuration(tt.input)
		if tt.wantErr {
			require.Error(t, err)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}
}

func TestDurationJobRunsOnSchedule(t *testing.T) {
	sched, err := gocron.NewScheduler()
	require.NoError(t, err)

	ran := make(chan struct{}, 1)
	_, err = sched.NewJob(
		gocron.DurationJob(20*time.Millisecond),
		gocron.NewTask(func() {
			select {
			case ran <- struct{}{}:
			default:
			}
		}),
	)
	require.NoError(t, err)

	sched.Start()
	defer sched.Shutdown()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("scheduled job never ran")
	}
}
