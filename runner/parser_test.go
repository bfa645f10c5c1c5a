package runner

import (
	"strings"
	"testing"

	"github.com/ethereum-optimism/infra/cleantest/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeLine(t *testing.T, o *types.Outcome) string {
	t.Helper()
	data, err := EncodeOutcome(o)
	require.NoError(t, err)
	return string(data)
}

func TestOutcomeParser(t *testing.T) {
	pass := types.NewOutcome("pkg.Case.TestA")
	pass.TestsRun = 1

	failed := types.NewOutcome("pkg.Case.TestA")
	failed.TestsRun = 1
	failed.Failures = []types.Record{{Test: "pkg.Case.TestA", Message: "mismatch"}}

	tests := []struct {
		name    string
		output  string
		want    *types.Outcome
		wantErr bool
	}{
		{
			name:   "outcome only",
			output: encodeLine(t, pass),
			want:   pass,
		},
		{
			name:   "log lines before outcome",
			output: "INFO starting\n{\"msg\":\"json log line\"}\n" + encodeLine(t, failed),
			want:   failed,
		},
		{
			name:   "last well-formed outcome wins",
			output: encodeLine(t, pass) + "noise\n" + encodeLine(t, failed) + "\n\n",
			want:   failed,
		},
		{
			name:   "trailing garbage after outcome",
			output: encodeLine(t, pass) + "{\"truncated\": \n",
			want:   pass,
		},
		{
			name:   "carriage returns",
			output: strings.ReplaceAll(encodeLine(t, pass), "\n", "\r\n"),
			want:   pass,
		},
		{
			name:    "wrong schema ignored",
			output:  `{"schema":"other","version":1,"test":"x","tests_run":1}` + "\n",
			wantErr: true,
		},
		{
			name:    "future version ignored",
			output:  `{"schema":"cleantest/outcome","version":99,"test":"x","tests_run":1}` + "\n",
			wantErr: true,
		},
		{
			name:    "empty",
			output:  "",
			wantErr: true,
		},
		{
			name:    "crash without outcome",
			output:  "panic: runtime error\n\ngoroutine 1 [running]:\nmain.main()\n",
			wantErr: true,
		},
	}

	parser := NewOutcomeParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parser.Parse([]byte(tt.output))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoOutcome)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
