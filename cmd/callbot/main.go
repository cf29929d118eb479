// Command callbot is a headless Connectify client: it logs in over the
// REST API, joins the relay, and answers every incoming call with a
// loopback of the caller's audio. With -call it dials a user instead.
// Useful for exercising the signaling path end to end without a browser.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/connectify/connectify/internal/call"
)

func main() {
	server := flag.String("server", "http://localhost:5001", "Connectify server base URL")
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	signup := flag.Bool("signup", false, "create the account before logging in")
	fullName := flag.String("name", "Call Bot", "full name used on signup")
	target := flag.String("call", "", "user ID to call; empty means answer-only")
	stun := flag.String("stun", "stun:stun.l.google.com:19302", "STUN server URL")
	timeout := flag.Duration("negotiation-timeout", 30*time.Second, "abandon a call that never connects")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *email == "" || *password == "" {
		log.Fatal().Msg("-email and -password are required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	jar, err := cookiejar.New(nil)
	if err != nil {
		log.Fatal().Err(err).Msg("cookie jar")
	}
	hc := &http.Client{Jar: jar, Timeout: 10 * time.Second}

	if *signup {
		if err := postJSON(ctx, hc, *server+"/api/auth/signup", map[string]string{
			"email": *email, "password": *password, "fullName": *fullName,
		}); err != nil {
			log.Warn().Err(err).Msg("signup failed, trying login anyway")
		}
	}
	if err := postJSON(ctx, hc, *server+"/api/auth/login", map[string]string{
		"email": *email, "password": *password,
	}); err != nil {
		log.Fatal().Err(err).Msg("login")
	}
	log.Info().Str("email", *email).Msg("logged in")

	media, err := call.NewLoopbackSource()
	if err != nil {
		log.Fatal().Err(err).Msg("media source")
	}

	mgr := call.NewManager(*fullName, media, func() (call.PeerLink, error) {
		return call.NewWebRTCLink([]string{*stun}, media)
	}, *timeout)
	defer mgr.Close()

	mgr.OnState = func(st call.State) {
		log.Info().Str("state", st.String()).Msg("call state")
	}
	mgr.OnIncoming = func(from, fromName string, s *call.Session) {
		log.Info().Str("from", from).Str("name", fromName).Msg("incoming call, answering")
		if err := s.Accept(); err != nil {
			log.Error().Err(err).Msg("accept")
		}
	}
	mgr.OnRemoteStream = func(stream any) {
		track, ok := stream.(*webrtc.TrackRemote)
		if !ok {
			return
		}
		go media.Feed(track)
	}

	cli, err := call.Dial(ctx, wsEndpoint(*server), headerWithCookies(jar, *server), mgr)
	if err != nil {
		log.Fatal().Err(err).Msg("relay dial")
	}
	defer cli.Close()

	cli.OnOnlineUsers = func(ids []string) {
		log.Info().Strs("online", ids).Msg("presence update")
	}
	cli.OnNewMessage = func(raw json.RawMessage) {
		log.Info().RawJSON("message", raw).Msg("new message")
	}

	if *target != "" {
		go func() {
			// Let the first presence frame land before dialing.
			time.Sleep(time.Second)
			if _, err := mgr.Call(*target); err != nil {
				log.Error().Err(err).Str("target", *target).Msg("call")
			}
		}()
	}

	if err := cli.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("relay connection lost")
	}
	log.Info().Msg("callbot exiting")
}

func postJSON(ctx context.Context, hc *http.Client, url string, body any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return nil
}

func wsEndpoint(server string) string {
	ws := strings.Replace(server, "http", "ws", 1)
	return ws + "/api/ws"
}

func headerWithCookies(jar http.CookieJar, server string) http.Header {
	u, err := url.Parse(server)
	if err != nil {
		return nil
	}
	header := http.Header{}
	for _, c := range jar.Cookies(u) {
		header.Add("Cookie", c.String())
	}
	return header
}
