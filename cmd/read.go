/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/allbin/go-serialwait"
	"github.com/allbin/go-serialwait/internal/tui/components"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

// readCmd represents the read command
var readCmd = &cobra.Command{
	Use:   "read <path>",
	Short: "Read bytes from a device with a deadline",
	Long: `Open an already configured device, pty or FIFO and read from it.

Without --bytes the command returns as soon as any data arrives. With
--bytes N it waits for exactly N bytes and, on timeout, prints what it got
before failing. Ctrl+C interrupts the wait at the next poll boundary.

The device is used as-is: no line settings are changed.

Example usage:
  serialwait read /dev/ttyUSB0 --timeout 2s
  serialwait read /dev/pts/3 --bytes 16 --hex
  serialwait read /tmp/fifo --poll-period 20ms`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		count, _ := cmd.Flags().GetInt("bytes")
		showHex, _ := cmd.Flags().GetBool("hex")

		if err := runRead(args[0], count, showHex); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(readCmd)

	readCmd.Flags().IntP("bytes", "n", 0, "Read exactly this many bytes (0 = whatever arrives first)")
	readCmd.Flags().BoolP("hex", "x", false, "Print data as hex instead of ASCII")
}

// openDevice opens path read-only without becoming its controlling terminal
func openDevice(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDONLY|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
}

func runRead(path string, count int, showHex bool) error {
	if count < 0 {
		return fmt.Errorf("--bytes must not be negative")
	}

	f, err := openDevice(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}

	stream, err := serialwait.NewStream(f, waitOptions(v, logger)...)
	if err != nil {
		f.Close()
		return err
	}
	defer stream.Close()

	// Ctrl+C sets the interruption flag; the read notices it at the next poll
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		if _, ok := <-sigChan; ok {
			fmt.Fprintf(os.Stderr, "\nInterrupting...\n")
			stream.Interrupt()
		}
	}()

	timeout := v.GetDuration("timeout")
	logger.Info().
		Str("path", path).
		Int("bytes", count).
		Str("timeout", describeTimeout(timeout)).
		Dur("poll_period", v.GetDuration("poll-period")).
		Msg("reading")

	var n int
	buf := make([]byte, max(count, 4096))
	if count > 0 {
		n, err = stream.ReadFull(buf[:count])
	} else {
		n, err = stream.Read(buf)
	}

	if n > 0 {
		printData(os.Stdout, buf[:n], showHex)
	}
	return readResult(err, n, count)
}

// readResult maps the outcome of a read onto the command's exit error. A
// short read is an error whether it ended by timeout or end of input.
func readResult(err error, n, count int) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, serialwait.ErrTimeout):
		return fmt.Errorf("%w (%d of %d bytes)", err, n, count)
	case errors.Is(err, serialwait.ErrInterrupted):
		return fmt.Errorf("%w after %d bytes", err, n)
	case errors.Is(err, io.EOF):
		if count > 0 && n < count {
			return fmt.Errorf("%w (%d of %d bytes)", io.ErrUnexpectedEOF, n, count)
		}
		return nil
	}
	return err
}

func printData(w io.Writer, data []byte, showHex bool) {
	if showHex {
		fmt.Fprintln(w, components.Hex(data))
		return
	}
	fmt.Fprintln(w, components.Printable(data))
}
