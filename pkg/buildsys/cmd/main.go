// Package cmd implements the task command for the buildsys package
package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tisannai/ringer/pkg"
	"github.com/tisannai/ringer/pkg/buildsys"
)

var RootCmd = &cobra.Command{
	Use:   "task [flags] [task...] [option=value...]",
	Short: "Runs tasks from the closest tasks.star file",
	Long: `This command parses the first tasks.star file it finds in the working directory or
one of its parents and executes the given tasks. Without task names the available
tasks and options are listed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, err := cmd.Flags().GetBool("dry")
		if err != nil {
			return err
		}

		force, err := cmd.Flags().GetBool("force")
		if err != nil {
			return err
		}

		watch, err := cmd.Flags().GetBool("watch")
		if err != nil {
			return err
		}

		noCache, err := cmd.Flags().GetBool("no-cache")
		if err != nil {
			return err
		}

		taskArgs, options := splitArgs(args)
		ctx := buildsys.WithLogger(cmd.Context(), &log.Logger)

		taskPath, err := pkg.FindUpwards(".", pkg.TaskFile)
		if err != nil {
			return err
		}
		projectRoot := filepath.Dir(taskPath)

		cacheFile := filepath.Join(projectRoot, buildsys.CacheName)
		if noCache {
			cacheFile = ""
		}

		load := func(ctx context.Context) (buildsys.TaskList, error) {
			return buildsys.LoadTasks(ctx, taskPath, projectRoot, cacheFile, options)
		}

		taskList, err := load(ctx)
		if err != nil {
			return eris.Wrap(err, "failed to parse tasks")
		}

		if len(taskArgs) == 0 {
			_, scriptOptions, err := buildsys.RunScript(ctx, taskPath, projectRoot, options, false)
			if err != nil {
				return err
			}

			printTaskList(cmd.OutOrStdout(), taskList, scriptOptions)
			return nil
		}

		runAll := func(ctx context.Context, tasks buildsys.TaskList, force bool) error {
			for _, name := range taskArgs {
				err := buildsys.RunTask(ctx, projectRoot, name, tasks, buildsys.RunOptions{
					DryRun: dryRun,
					Force:  force,
				})
				if err != nil {
					return eris.Wrapf(err, "failed task %s", name)
				}
			}
			return nil
		}

		err = runAll(ctx, taskList, force)
		if !watch {
			return err
		}

		if err != nil {
			log.Error().Err(err).Msg("initial run failed")
		}

		return buildsys.Watch(ctx, projectRoot, buildsys.WatchOptions{}, func(ctx context.Context, changed []string) error {
			log.Info().Msgf("%d changed file(s), running again", len(changed))

			tasks, err := load(ctx)
			if err != nil {
				return err
			}

			return runAll(ctx, tasks, true)
		})
	},
}

func splitArgs(args []string) ([]string, map[string]string) {
	taskArgs := make([]string, 0)
	options := make(map[string]string)

	for _, part := range args {
		pos := strings.Index(part, "=")
		if pos > -1 {
			options[part[:pos]] = part[pos+1:]
		} else {
			taskArgs = append(taskArgs, part)
		}
	}

	return taskArgs, options
}

func printTaskList(out io.Writer, taskList buildsys.TaskList, options map[string]buildsys.ScriptOption) {
	fmt.Fprintln(out, "Available tasks:")
	sortedNames := taskList.Visible()
	sort.Strings(sortedNames)

	maxNameLen := 0
	for _, name := range sortedNames {
		if len(name) > maxNameLen {
			maxNameLen = len(name)
		}
	}

	lineFmt := fmt.Sprintf(" * %%-%ds %%s\n", maxNameLen+3)
	for _, name := range sortedNames {
		fmt.Fprintf(out, lineFmt, name+":", taskList[name].Desc)
	}

	if len(options) == 0 {
		return
	}

	fmt.Fprintln(out, "\nOptions:")
	optionNames := make([]string, 0, len(options))
	for name := range options {
		optionNames = append(optionNames, name)
	}
	sort.Strings(optionNames)

	for _, name := range optionNames {
		opt := options[name]
		fmt.Fprintf(out, " * %s=%s\n", name, opt.DefaultValue)
		if opt.Help != "" {
			fmt.Fprintf(out, "     %s\n", opt.Help)
		}
	}
}

func init() {
	RootCmd.Flags().BoolP("dry", "n", false, "dry run; only print the commands, don't execute anything")
	RootCmd.Flags().BoolP("force", "f", false, "force build; always execute the passed steps even if they don't have to run")
	RootCmd.Flags().BoolP("watch", "w", false, "run the tasks again whenever a file in the project changes")
	RootCmd.Flags().Bool("no-cache", false, "always parse tasks.star instead of using the cached task list")
}
