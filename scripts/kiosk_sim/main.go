// Command kiosk_sim emulates the RFID device-control stream for local
// development. It listens on a TCP port and forwards lines typed on stdin
// to every connected client, so the kiosk pipeline can be exercised
// without reader hardware.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
)

func main() {
	var addr string
	flag.StringVar(&addr, "addr", "localhost:5001", "address to listen on")
	flag.Parse()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("failed to listen on %s: %v", addr, err)
	}
	defer ln.Close()
	log.Printf("kiosk stream simulator listening on %s", addr)
	log.Printf("type an identifier and press enter to broadcast it; ctrl-d stops the stream")

	var (
		mu    sync.Mutex
		conns = make(map[net.Conn]struct{})
	)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			log.Printf("client connected: %s", conn.RemoteAddr())
			mu.Lock()
			conns[conn] = struct{}{}
			mu.Unlock()
		}
	}()

	broadcast := func(line string) {
		mu.Lock()
		defer mu.Unlock()
		for conn := range conns {
			if _, err := fmt.Fprintln(conn, line); err != nil {
				conn.Close()
				delete(conns, conn)
			}
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		broadcast(scanner.Text())
	}
	broadcast("_STOP_")
}
