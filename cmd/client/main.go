package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/npezzotti/go-multilingo/internal/audio"
	"github.com/npezzotti/go-multilingo/internal/client"
	"github.com/npezzotti/go-multilingo/internal/server"
	"github.com/npezzotti/go-multilingo/internal/types"
)

var (
	serverURL   string
	roomId      string
	email       string
	password    string
	translateTo string
	wavFile     string
)

func main() {
	flag.StringVar(&serverURL, "server", "http://localhost:8000", "server base URL")
	flag.StringVar(&roomId, "room", "", "room id to join")
	flag.StringVar(&email, "email", "", "account email")
	flag.StringVar(&password, "password", "", "account password")
	flag.StringVar(&translateTo, "translate-to", "", "language to receive the transcript in")
	flag.StringVar(&wavFile, "wav", "", "optional wav file to stream as speech")
	flag.Parse()

	logger := log.New(os.Stderr, "[multilingo] ", log.LstdFlags)

	if roomId == "" || email == "" || password == "" {
		logger.Fatal("room, email and password are required")
	}

	user, token, err := login(serverURL, email, password)
	if err != nil {
		logger.Fatal("login:", err)
	}

	wsURL := strings.Replace(serverURL, "http", "ws", 1) + "/ws"

	session, err := client.NewSession(client.SessionConfig{
		URL:         wsURL,
		Token:       token,
		RoomId:      roomId,
		UserId:      user.Id,
		UserName:    user.Username,
		Language:    user.Language,
		TranslateTo: translateTo,
	}, logger)
	if err != nil {
		logger.Fatal("session:", err)
	}
	defer session.Close()

	if wavFile != "" {
		go streamWav(session, wavFile, logger)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case msg, ok := <-session.Events():
			if !ok {
				if err := session.Err(); err != nil {
					logger.Println("session ended:", err)
				}
				return
			}
			printEvent(msg)
		case <-sigs:
			session.Leave()
			return
		}
	}
}

func login(baseURL, email, password string) (*types.User, string, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, "", err
	}

	resp, err := http.Post(baseURL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var user types.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, "", err
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "token" {
			return &user, cookie.Value, nil
		}
	}

	return nil, "", fmt.Errorf("no session cookie in login response")
}

// streamWav replays a recording as one-second units, pacing them like a
// live speaker.
func streamWav(session *client.Session, path string, logger *log.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Println("read wav:", err)
		return
	}

	samples, format, err := audio.DecodeWav(data)
	if err != nil {
		logger.Println("decode wav:", err)
		return
	}

	// wait for the roster before speaking
	for session.State() != client.StateJoined {
		time.Sleep(100 * time.Millisecond)
	}

	session.SetSpeaking(true)
	defer session.SetSpeaking(false)

	rec := client.NewRecorder(format.SampleRate, format.Channels)
	unitLen := format.SampleRate * format.Channels
	for start := 0; start < len(samples); start += unitLen {
		end := min(start+unitLen, len(samples))
		rec.AppendFrame(samples[start:end])

		unit, err := rec.Finalize()
		if err != nil {
			logger.Println("finalize unit:", err)
			return
		}
		if err := session.SendAudio(unit); err != nil {
			logger.Println("send audio:", err)
			return
		}

		time.Sleep(time.Second)
	}
}

func printEvent(msg *server.ServerMessage) {
	switch msg.Type {
	case server.TypeParticipantsList:
		names := make([]string, 0, len(msg.Participants))
		for _, p := range msg.Participants {
			if p.Online {
				names = append(names, p.UserName)
			}
		}
		fmt.Printf("-- in room: %s\n", strings.Join(names, ", "))
	case server.TypeParticipantJoined:
		fmt.Printf("-- %s joined\n", msg.Participant.UserName)
	case server.TypeParticipantLeft:
		fmt.Printf("-- participant %d left\n", msg.UserId)
	case server.TypeTranscription:
		text := msg.Message.OriginalText
		if msg.Message.TranslatedText != nil {
			text = *msg.Message.TranslatedText
		}
		fmt.Printf("%s: %s\n", msg.Message.SpeakerName, text)
	case server.TypeSessionEnded:
		fmt.Printf("-- session ended by %s\n", msg.EndedBy)
	}
}
