package conf

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/elwinar/crashlog"
)

// Parse the given FlagSet using the command line and the file pointed by the
// conf flag value.
//
// The parser ignore empty lines and lines that start with a #.
// Lines without a = sign will be considered as a boolean flag and the value
// will default to true.
// The priority order is command line, conf file, then default value.
func Parse(fs *flag.FlagSet, conf string) {
	err := parse(fs, os.Args[1:], conf)
	if err == nil {
		return
	}

	fmt.Fprintln(fs.Output(), err)
	fs.Usage()
	switch fs.ErrorHandling() {
	case flag.ContinueOnError:
		return
	case flag.ExitOnError:
		os.Exit(2)
	case flag.PanicOnError:
		panic(err)
	}
}

func parse(fs *flag.FlagSet, args []string, conf string) error {
	if fs == nil {
		return errors.New(`nil flagset`)
	}

	err := fs.Parse(args)
	if err != nil {
		return err
	}

	if conf == "" {
		return nil
	}

	// The flag package doesn't provide a view of which flags have been
	// set, but Visit only walks the flags given on the command line.
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	f := fs.Lookup(conf)
	if f == nil {
		return fmt.Errorf("configuration flag %q not found", conf)
	}

	path, ok := f.Value.(flag.Getter).Get().(string)
	if !ok {
		return fmt.Errorf("non-string configuration flag %q given", conf)
	}

	file, err := os.Open(path)

	// A missing default configuration file isn't an error, a missing
	// explicit one is.
	if errors.Is(err, os.ErrNotExist) && !set[conf] {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening configuration file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}

		line = strings.TrimLeft(line, "-")

		chunks := strings.SplitN(line, "=", 2)
		if len(chunks) == 1 {
			chunks = append(chunks, "true")
		}

		key := strings.TrimSpace(chunks[0])
		if set[key] {
			continue
		}

		val := strings.TrimSpace(chunks[1])
		if len(val) != 0 && val[0] == '"' {
			val, err = strconv.Unquote(val)
			if err != nil {
				return fmt.Errorf("line %d: unquoting value for key %q: %w", n, key, err)
			}
		}

		err := fs.Set(key, val)
		if err != nil {
			return fmt.Errorf("line %d: setting flag %q to %q: %w", n, key, val, err)
		}
	}

	return scanner.Err()
}

// PairsFlag returns a flag.Value appending key-value pairs to the given
// slice, in the order they are given. The raw value is split on ';' to
// separate the pairs and on the first '=' to separate the key from the value.
// Setting a key twice replaces its value but keeps its position, which is the
// behavior of the reporter's custom data.
func PairsFlag(p *[]crashlog.Pair) *pairsFlag {
	return &pairsFlag{p: p}
}

type pairsFlag struct {
	p *[]crashlog.Pair
}

// String returns the pairs in the format accepted by Set.
func (f *pairsFlag) String() string {
	if f.p == nil || len(*f.p) == 0 {
		return ""
	}

	var buf strings.Builder
	for i, pair := range *f.p {
		if i != 0 {
			buf.WriteByte(';')
		}
		buf.WriteString(pair.Key)
		buf.WriteByte('=')
		buf.WriteString(pair.Value)
	}
	return buf.String()
}

// Set appends the pairs of the raw string.
func (f *pairsFlag) Set(raw string) error {
	for _, value := range strings.Split(raw, ";") {
		if len(strings.TrimSpace(value)) == 0 {
			continue
		}

		chunks := strings.SplitN(value, "=", 2)
		if len(chunks) == 1 {
			chunks = append(chunks, "")
		}

		key, val := strings.TrimSpace(chunks[0]), chunks[1]
		if len(key) == 0 {
			return fmt.Errorf("empty key in %q", value)
		}
		*f.p = SetPair(*f.p, key, val)
	}
	return nil
}

// SetPair sets the value of key in pairs, appending a new pair if the key
// isn't there yet.
func SetPair(pairs []crashlog.Pair, key, value string) []crashlog.Pair {
	for i := range pairs {
		if pairs[i].Key == key {
			pairs[i].Value = value
			return pairs
		}
	}
	return append(pairs, crashlog.Pair{Key: key, Value: value})
}
