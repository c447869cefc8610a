package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/craggy/gorough"
)

var (
	fc = flag.String("c", "", "yaml config file")
	fv = flag.Bool("v", false, "print version")

	fhost      = flag.String("host", "", "roughtime server address <hostname:port>")
	fkey       = flag.String("key", "", "base64 root public key")
	fnonce     = flag.String("nonce", "", "base64 fixed nonce (overrides random generation)")
	fintervals = flag.Int("intervals", 0, "seconds between repeated exchanges")
	frepeats   = flag.Int("repeats", 0, "number of exchanges to perform")
	fgpsport   = flag.String("gpsport", "", "serial device of the GNSS receiver")
	fgpsbaud   = flag.Int("gpsbaud", 0, "GNSS serial baud rate")
	fmetric    = flag.String("metric", "", "prometheus metric listen address")

	Version = "dev"
)

func main() {
	flag.Parse()

	if *fv {
		log.Printf("gorough %s", Version)
		flag.PrintDefaults()
		return
	}

	cfg := &gorough.Config{}
	if *fc != "" {
		var err error
		cfg, err = gorough.NewConfigFromFile(*fc)
		if err != nil {
			log.Fatal(err)
		}
	}

	if *fhost != "" {
		cfg.Host = *fhost
	}
	if *fkey != "" {
		cfg.Key = *fkey
	}
	if *fnonce != "" {
		cfg.Nonce = *fnonce
	}
	if *fintervals > 0 {
		cfg.Intervals = *fintervals
	}
	if *frepeats > 0 {
		cfg.Repeats = *frepeats
	}
	if *fgpsport != "" {
		cfg.GPSPort = *fgpsport
	}
	if *fgpsbaud > 0 {
		cfg.GPSBaud = *fgpsbaud
	}
	if *fmetric != "" {
		cfg.Metric = *fmetric
	}

	s, err := gorough.NewSession(cfg)
	if err != nil {
		log.Println(err)
		flag.PrintDefaults()
		os.Exit(1)
	}

	if cfg.GPSPort != "" {
		mon, err := gorough.OpenGNSS(cfg.GPSPort, cfg.GPSBaud)
		if err != nil {
			log.Fatal(err)
		}
		defer mon.Close()
		s.AttachGNSS(mon)
	}

	// The handler only signals; the session observes the stop between
	// iterations and finishes the verification in flight.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Print("stopping")
		s.Stop()
	}()

	if err := s.Run(); err != nil {
		log.Fatal(err)
	}
}
