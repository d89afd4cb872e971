// Command migrate manages the treasury database schema.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/erp/treasury/internal/infrastructure/config"
	"github.com/erp/treasury/internal/infrastructure/logger"
	"github.com/erp/treasury/internal/infrastructure/migration"
	"github.com/erp/treasury/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsDir = "migrations"

var errUsage = errors.New("usage")

// schemaCommand runs against an open Migrator
type schemaCommand func(m *migration.Migrator, log *zap.Logger, args []string) error

var schemaCommands = map[string]schemaCommand{
	"up":      func(m *migration.Migrator, _ *zap.Logger, _ []string) error { return m.Up() },
	"down":    func(m *migration.Migrator, _ *zap.Logger, _ []string) error { return m.Down() },
	"step":    runStep,
	"goto":    runGoTo,
	"version": runVersion,
	"force":   runForce,
	"drop":    runDrop,
}

func main() {
	dir := flag.String("path", "", "Read migrations from this directory instead of the embedded set")
	level := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	log, err := logger.New(logger.Config{
		Level:      *level,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(log, *dir, flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			log.Error(err.Error())
			printUsage(os.Stderr)
			os.Exit(2)
		}
		log.Error("migrate failed", zap.String("command", flag.Arg(0)), zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.Logger, dir string, args []string) error {
	if dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", dir, err)
		}
		dir = abs
	}
	command, rest := args[0], args[1:]
	log.Info("migrate", zap.String("command", command), zap.String("source", sourceName(dir)))

	switch command {
	case "create":
		return runCreate(log, dir, rest)
	case "list":
		return runList(log, dir)
	}

	exec, ok := schemaCommands[command]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	var opts []migration.Option
	if dir != "" {
		opts = append(opts, migration.WithDirectory(dir))
	}
	m, err := migration.New(db, log, opts...)
	if err != nil {
		return err
	}
	defer m.Close()

	return exec(m, log, rest)
}

// create writes files, so it always resolves to a directory on disk
func runCreate(log *zap.Logger, dir string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: migrate create <name> [description]", errUsage)
	}
	if dir == "" {
		dir = defaultMigrationsDir
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}

	mf, err := migration.CreateMigration(dir, args[0], description)
	if err != nil {
		return err
	}
	log.Info("migration created",
		zap.String("version", mf.Version),
		zap.String("up", mf.UpPath),
		zap.String("down", mf.DownPath),
	)
	return nil
}

func runList(log *zap.Logger, dir string) error {
	var files fs.FS = migrations.FS
	if dir != "" {
		files = os.DirFS(dir)
	}
	names, err := migration.ListMigrations(files)
	if err != nil {
		return err
	}
	log.Info("migrations", zap.Int("count", len(names)))
	for _, name := range names {
		fmt.Println("  -", name)
	}
	return nil
}

func runStep(m *migration.Migrator, _ *zap.Logger, args []string) error {
	n, err := intArg(args, "migrate step <n>")
	if err != nil {
		return err
	}
	return m.Steps(n)
}

func runGoTo(m *migration.Migrator, _ *zap.Logger, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: migrate goto <version>", errUsage)
	}
	version, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid version %q", errUsage, args[0])
	}
	return m.GoTo(uint(version))
}

func runVersion(m *migration.Migrator, log *zap.Logger, _ []string) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	log.Info("schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func runForce(m *migration.Migrator, _ *zap.Logger, args []string) error {
	version, err := intArg(args, "migrate force <version>")
	if err != nil {
		return err
	}
	return m.Force(version)
}

func runDrop(m *migration.Migrator, _ *zap.Logger, args []string) error {
	if !slices.Contains(args, "-confirm") && !slices.Contains(args, "--confirm") {
		return fmt.Errorf("%w: drop needs -confirm", errUsage)
	}
	return m.Drop()
}

func intArg(args []string, usage string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%w: %s", errUsage, usage)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errUsage, args[0])
	}
	return n, nil
}

func sourceName(dir string) string {
	if dir == "" {
		return "embedded"
	}
	return dir
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: migrate [-path dir] [-log-level level] <command> [args]

Schema commands (connect using TREASURY_DATABASE_* settings):
  up                    apply every pending migration
  down                  roll back every migration
  step <n>              apply n migrations, negative n rolls back
  goto <version>        migrate to version
  version               print the current version and dirty flag
  force <version>       set the version without running SQL
  drop -confirm         drop every object in the database

File commands:
  create <name> [desc]  write a new up/down pair into -path (default ./migrations)
  list                  list migrations in -path or the embedded set
`)
}
