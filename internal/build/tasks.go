// Package build orchestrates named build tasks. Tasks are arranged in
// ordered groups: tasks inside a group run concurrently, groups run one
// after another. A production run stops at the first failure; a development
// run records failures in the report and keeps going so a long-running
// watcher survives a broken stylesheet.
package build

import "context"

// TaskName identifies a build task.
type TaskName string

const (
	TaskClean     TaskName = "clean"
	TaskScripts   TaskName = "scripts"
	TaskStyles    TaskName = "styles"
	TaskCopy      TaskName = "copy"
	TaskTemplates TaskName = "templates"
	TaskHTML      TaskName = "html"
	TaskImages    TaskName = "images"
	TaskAbout     TaskName = "about"
)

// TaskFunc runs one task.
type TaskFunc func(ctx context.Context) error

// Sequence is an ordered list of task groups.
type Sequence [][]TaskName

var (
	// ProductionSequence builds dist from scratch.
	ProductionSequence = Sequence{
		{TaskClean},
		{TaskScripts, TaskStyles, TaskCopy, TaskTemplates},
		{TaskHTML, TaskImages},
		{TaskAbout},
	}
	// DevSequence refreshes the staging tree served by the dev server.
	DevSequence = Sequence{
		{TaskScripts, TaskStyles, TaskTemplates},
	}
	// WatchSequence rebuilds scripts and styles into a clean staging tree.
	WatchSequence = Sequence{
		{TaskClean},
		{TaskScripts, TaskStyles},
	}
)

// Tasks lists every task named in the sequence, in order.
func (s Sequence) Tasks() []TaskName {
	var out []TaskName
	for _, g := range s {
		out = append(out, g...)
	}
	return out
}
