package player

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
)

// readConfigFile reads vlayer.conf. The file uses env-file syntax, so option
// names are written with underscores in place of dashes:
//
//	# vlayer.conf
//	loop_file=inf
//	volume=60
//
// A missing file yields no options and no error.
func readConfigFile(path string) (map[string]string, error) {
	raw, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	opts := make(map[string]string, len(raw))
	for k, v := range raw {
		opts[strings.ReplaceAll(strings.ToLower(k), "_", "-")] = v
	}
	return opts, nil
}

// applyConfigFile applies options from the config file that were not set
// explicitly. Options are applied in name order; every failure is reported
// and the rest still apply.
func applyConfigFile(s *settings, opts map[string]string, explicit map[string]bool) []error {
	names := make([]string, 0, len(opts))
	for k := range opts {
		names = append(names, k)
	}
	slices.Sort(names)

	var errs []error
	for _, name := range names {
		if explicit[name] {
			continue
		}
		if err := s.set(name, opts[name]); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// readInputConf reads key bindings from input.conf. Each line is a key name
// followed by a command:
//
//	RIGHT add volume 5
//	x     quit
//
// A missing file yields no bindings and no error.
func readInputConf(path string) (keyBindings, []error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, []error{fmt.Errorf("failed to open %s: %w", path, err)}
	}
	defer f.Close()
	return parseInputConf(f, path)
}

func parseInputConf(r io.Reader, name string) (keyBindings, []error) {
	b := keyBindings{}
	var errs []error
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		switch len(fields) {
		case 0:
			continue
		case 1:
			errs = append(errs, fmt.Errorf("%s:%d: key %q has no command", name, n, fields[0]))
			continue
		}
		b[fields[0]] = fields[1:]
	}
	if err := sc.Err(); err != nil {
		errs = append(errs, fmt.Errorf("failed to read %s: %w", name, err))
	}
	return b, errs
}
