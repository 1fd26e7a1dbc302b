// Package accesslog implements the per-request log file sink: one formatted
// line per handled request, appended to a file that is optionally rotated by
// size with a bounded number of numbered backups.
package accesslog
