// Package filesystem is the on-disk collaborator behind the content cache.
//
// A backlog is a directory holding one markdown file per entity:
//
//	backlog/
//	  tasks/task-3 - Fix-login.md
//	  docs/guides/doc-1 - Setup.md
//	  decisions/decision-2 - Use-YAML.md
//	  milestones/m-1 - Beta.md
//
// Each file starts with a YAML frontmatter block delimited by "---" lines,
// followed by the markdown body. [Store] lists, loads, parses and writes
// these files through an afero.Fs so it can be exercised in memory.
package filesystem
