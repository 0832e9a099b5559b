// Package buildsys implements the task runner used to test, build and publish ringer.
// Tasks are declared in a Starlark file (tasks.star) and their commands are executed by
// mvdan.cc/sh so that the same task file works on every platform Go supports.
//
// A task file declares options in its global scope and tasks inside a configure() function:
//
//	version = option("version", "0.0.1", help = "library version")
//
//	def configure():
//	    task(
//	        short = "test",
//	        desc = "Runs the unit tests",
//	        cmds = ["go test ./..."],
//	    )
package buildsys
