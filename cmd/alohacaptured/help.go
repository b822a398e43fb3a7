package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
)

var (
	flagConfig         string
	flagVideoSource    string
	flagAudioSource    string
	flagFacing         string
	flagFrameRate      int
	flagSampleRate     int
	flagGeometry       string
	flagDuration       time.Duration
	flagLogFile        string
	flagVideoOut       string
	flagAudioOut       string
	flagMetricsAddress string
	flagHelp           bool
	flagVersion        bool
)

func init() {
	flag.StringVarP(&flagConfig, "config", "c", "", "Session config file (YAML)")
	flag.StringVarP(&flagVideoSource, "video-source", "i", "/dev/video0", "Camera source spec")
	flag.StringVarP(&flagAudioSource, "audio-source", "a", "malgo:default", "Microphone source spec")
	flag.StringVarP(&flagFacing, "facing", "f", "", "Camera facing, front or back")
	flag.IntVarP(&flagFrameRate, "fps", "r", 0, "Video frame rate")
	flag.IntVarP(&flagSampleRate, "rate", "", 0, "Audio sample rate, in Hz")
	flag.StringVarP(&flagGeometry, "geometry", "g", "", "Preferred preview size, WxH")
	flag.DurationVarP(&flagDuration, "duration", "d", 0, "Stop recording after this long")
	flag.StringVarP(&flagVideoOut, "video-out", "o", "", "Dump raw video frames to this file")
	flag.StringVarP(&flagAudioOut, "audio-out", "", "", "Dump raw PCM audio to this file")
	flag.StringVarP(&flagLogFile, "log-file", "", "", "Write logs to a rotating file")
	flag.StringVarP(&flagMetricsAddress, "metrics-address", "m", "", "Serve Prometheus metrics on this address")

	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
	flag.BoolVarP(&flagVersion, "version", "v", false, "Print version information and exit")
}

const helpString = `Live camera and microphone capture

Usage: alohacaptured [OPTION]...

Sources:
  -i, --video-source=SPEC  Camera (default: /dev/video0). Examples:
                             /dev/video0                   one camera, both facings
                             v4l2:/dev/video0,/dev/video2  back and front
                             testpattern:30                synthetic bars
  -a, --audio-source=SPEC  Microphone (default: malgo:default). Examples:
                             malgo:USB                     device by name
                             tone:440                      synthetic sine

Session:
  -c, --config=FILE        Session config file (YAML). Flags override it.
  -f, --facing=DIR         Camera facing, front or back (default: front)
  -r, --fps=NUM            Video frame rate (default: 30)
      --rate=NUM           Audio sample rate, in Hz (default: 44100)
  -g, --geometry=WxH       Preferred preview size (default: 640x480)
  -d, --duration=TIME      Stop after TIME, e.g. 30s (default: until ^C)

Output:
  -o, --video-out=FILE     Dump raw frames (e.g. NV21) to FILE
      --audio-out=FILE     Dump raw S16LE PCM to FILE

Miscellaneous:
      --log-file=FILE      Write logs to FILE, rotated by size
  -m, --metrics-address=ADDR
                           Serve Prometheus metrics at ADDR/metrics
  -h, --help               Prints this help message and exits
  -v, --version            Prints version information and exits

Logging verbosity is set with LOGLEVEL, e.g. LOGLEVEL=debug,media=trace

Please report bugs to: aloha@lanikailabs.com`

// Help information is printed and program exits
func help() {
	r := color.New(color.FgRed)
	y := color.New(color.FgYellow)
	b := color.New(color.FgCyan)

	//         _         _
	//   __ _ | |  ___  | |__    __ _
	//  / _` || | / _ \ | '_ \  / _` |
	// | (_| || || (_) || | | || (_| |
	//  \__,_||_| \___/ |_| |_| \__,_|  capture

	r.Printf("        ")
	y.Printf(" _ ")
	b.Printf("       ")
	y.Println(" _     ")

	r.Printf("   __ _ ")
	y.Printf("| |")
	b.Printf("  ___  ")
	y.Printf("| |__  ")
	r.Println("  __ _ ")

	r.Printf("  / _` |")
	y.Printf("| |")
	b.Printf(" / _ \\ ")
	y.Printf("| '_ \\ ")
	r.Println(" / _` |")

	r.Printf(" | (_| |")
	y.Printf("| |")
	b.Printf("| (_) |")
	y.Printf("| | | |")
	r.Println("| (_| |")

	r.Printf("  \\__,_|")
	y.Printf("|_|")
	b.Printf(" \\___/ ")
	y.Printf("|_| |_|")
	r.Printf(" \\__,_|")
	b.Println("  capture")

	fmt.Println(helpString)
}

// version displays information and exits successfully (GNU convention)
func version() {
	fmt.Println("alohacaptured", GitRevisionId)
	fmt.Println("Copyright 2019 Lanikai Labs LLC. All rights reserved.")
}
