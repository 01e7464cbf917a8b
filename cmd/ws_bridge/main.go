// Command ws_bridge exposes a terminal agent over a WebSocket. Each
// connection spawns the given command (typically the parakeet binary)
// and bridges its stdio: stdout and stderr stream out as JSON events,
// incoming messages are written to stdin as lines.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/exec"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type event struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

func main() {
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	cmdArgs := flag.Args()
	if len(cmdArgs) == 0 {
		log.Fatal("usage: ws_bridge [-addr :8080] <command> [args...]")
	}

	http.HandleFunc("/ws", handleWS(cmdArgs))

	fmt.Printf("WebSocket bridge running on ws://localhost%s/ws\n", *addr)
	log.Fatal(http.ListenAndServe(*addr, nil))
}

func handleWS(cmdArgs []string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("Upgrade error:", err)
			return
		}
		defer conn.Close()

		cmd := exec.Command(cmdArgs[0], cmdArgs[1:]...)

		stdin, err := cmd.StdinPipe()
		if err != nil {
			log.Println("Error getting stdin:", err)
			return
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			log.Println("Error getting stdout:", err)
			return
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			log.Println("Error getting stderr:", err)
			return
		}

		if err := cmd.Start(); err != nil {
			log.Println("Error starting agent:", err)
			return
		}
		defer func() {
			cmd.Process.Kill()
			cmd.Wait()
		}()

		// Serializes writes; stdout and stderr pump concurrently.
		var writeMu sync.Mutex
		go pump(conn, &writeMu, stdout, "stdout")
		go pump(conn, &writeMu, stderr, "stderr")

		// WebSocket messages become agent stdin lines.
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				log.Println("WS read error:", err)
				return
			}
			if _, err := stdin.Write(append(msg, '\n')); err != nil {
				log.Println("Stdin write error:", err)
				return
			}
		}
	}
}

// pump streams one output pipe to the socket, one JSON event per line.
func pump(conn *websocket.Conn, mu *sync.Mutex, pipe io.Reader, kind string) {
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		message, err := json.Marshal(event{Type: kind, Data: scanner.Text()})
		if err != nil {
			continue
		}
		mu.Lock()
		err = conn.WriteMessage(websocket.TextMessage, message)
		mu.Unlock()
		if err != nil {
			log.Println("WS write error:", err)
			return
		}
	}
}
