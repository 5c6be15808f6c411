package job

import "testing"

func TestQueryMatches(t *testing.T) {
	pr := 42
	ref := "refs/heads/main"

	prJob := &Job{Trigger: NewPRTrigger(PullRequestInfo{Number: 42})}
	refJob := &Job{Trigger: NewRefTrigger("refs/heads/main")}

	cases := []struct {
		name string
		q    Query
		j    *Job
		want bool
	}{
		{"no filters matches anything", Query{}, prJob, true},
		{"pr filter matches pr job", Query{PRNumber: &pr}, prJob, true},
		{"pr filter rejects ref job", Query{PRNumber: &pr}, refJob, false},
		{"ref filter matches ref job", Query{Ref: &ref}, refJob, true},
		{"ref filter rejects pr job", Query{Ref: &ref}, prJob, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.q.Matches(tc.j); got != tc.want {
				t.Fatalf("Matches() = %v, want %v", got, tc.want)
			}
		})
	}
}
