/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/secretbingo/bingo"
	"github.com/Seednode/secretbingo/records"
)

const (
	maxNameLength  = 80
	previewRows    = 5
	qrSize         = 256
	guessField     = "guess-%d"
	revealField    = "reveal-%d"
	passwordField  = "password"
	confirmField   = "confirm"
	nameField      = "name"
	codeField      = "code"
	savedParameter = "saved"
)

var validCode = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Game serves the three views of the bingo over a record store.
type Game struct {
	cfg   *Config
	store *records.Store
	feed  *Feed
}

func newGame(cfg *Config, store *records.Store, feed *Feed) *Game {
	return &Game{cfg: cfg, store: store, feed: feed}
}

// view is the data handed to every page template.
type view struct {
	Prefix       string
	Title        string
	AdminEnabled bool
	Notices      []string
	Success      string
	Warning      string

	Code      string
	Name      string
	Card      [][]cardCell
	Password  string
	Unlocked  bool
	NoReveals bool
	Standings []standingView
}

type cardCell struct {
	Character string
	Field     string
	Options   []choice
}

type choice struct {
	Value    string
	Selected bool
}

type standingView struct {
	Place   int
	Label   string
	Points  int
	Matched []matchedView
}

type matchedView struct {
	Character string
	Name      string
	Photo     string
}

// snapshot is every collection as read for one request.
type snapshot struct {
	participants bingo.Participants
	bets         bingo.Bets
	reveals      bingo.Reveals
	identities   bingo.Identities
	links        bingo.CodeLinks
	notices      []string
}

func (s *snapshot) note(collection string, res records.Result) {
	if n := storeNotice(collection, res); n != "" && !slices.Contains(s.notices, n) {
		s.notices = append(s.notices, n)
	}
}

func (g *Game) snapshot(ctx context.Context) *snapshot {
	s := &snapshot{}

	set, res := g.store.Load(ctx, bingo.CollectionParticipants)
	s.participants = bingo.ParticipantsFrom(set)
	s.note(bingo.CollectionParticipants, res)

	set, res = g.store.Load(ctx, bingo.CollectionBets)
	s.bets = bingo.BetsFrom(set)
	s.note(bingo.CollectionBets, res)

	set, res = g.store.Load(ctx, bingo.CollectionReveals)
	s.reveals = bingo.RevealsFrom(set)
	s.note(bingo.CollectionReveals, res)

	set, res = g.store.Load(ctx, bingo.CollectionIdentities)
	s.identities = bingo.IdentitiesFrom(set)
	s.note(bingo.CollectionIdentities, res)

	set, res = g.store.Load(ctx, bingo.CollectionCodeLinks)
	s.links = bingo.CodeLinksFrom(set)
	s.note(bingo.CollectionCodeLinks, res)

	return s
}

// card lays the characters out as select boxes. selected picks the current
// value of each character.
func card(characters []string, options []string, field string, selected func(string) string) [][]cardCell {
	index := make(map[string]int, len(characters))
	for i, c := range characters {
		index[c] = i
	}

	grid := bingo.Grid(characters, bingo.GridColumns, bingo.CardRows(len(characters)))

	out := make([][]cardCell, 0, len(grid))
	for _, row := range grid {
		cells := make([]cardCell, 0, len(row))
		for _, character := range row {
			if character == "" {
				cells = append(cells, cardCell{})
				continue
			}

			current := selected(character)
			if !slices.Contains(options, current) && len(options) > 0 {
				current = options[0]
			}

			choices := make([]choice, len(options))
			for i, o := range options {
				choices[i] = choice{Value: o, Selected: o == current}
			}

			cells = append(cells, cardCell{
				Character: character,
				Field:     fmt.Sprintf(field, index[character]),
				Options:   choices,
			})
		}
		out = append(out, cells)
	}

	return out
}

func cleanCode(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, validCode.MatchString(s)
}

func serveBets(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		v := &view{Title: "Place your bets"}

		if raw := r.URL.Query().Get(codeField); raw != "" {
			code, ok := cleanCode(raw)
			if ok {
				http.Redirect(w, r, cfg.prefix+"/bets/"+url.PathEscape(code), http.StatusSeeOther)
				return
			}
			v.Warning = "Codes use only letters, digits, dashes and underscores."
		}

		render(cfg, w, http.StatusOK, "bets.html", v, errs)
	}
}

func serveNewCode(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		code := bingo.NewCode()

		logf(cfg, "GAMES: Issued code %s to %s", code, realIP(r))

		render(cfg, w, http.StatusOK, "code.html", &view{Title: "Your code", Code: code}, errs)
	}
}

func (g *Game) serveCard(errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		code, ok := cleanCode(p.ByName("code"))
		if !ok {
			http.Redirect(w, r, g.cfg.prefix+"/bets?code="+url.QueryEscape(p.ByName("code")), http.StatusSeeOther)
			return
		}

		s := g.snapshot(r.Context())
		saved := s.bets[code]

		v := &view{
			Title:   "Place your bets",
			Code:    code,
			Name:    s.links[code],
			Notices: s.notices,
			Card: card(s.participants.Characters, s.participants.RealNames, guessField, func(character string) string {
				return saved[character]
			}),
		}

		if r.URL.Query().Get(savedParameter) != "" {
			v.Success = "Your bets are saved!"
		}
		if len(s.participants.Characters) == 0 {
			v.Warning = "There are no characters on the card yet."
		}

		render(g.cfg, w, http.StatusOK, "card.html", v, errs)
	}
}

func (g *Game) saveCard(errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		code, ok := cleanCode(p.ByName("code"))
		if !ok {
			http.Error(w, "invalid code", http.StatusBadRequest)
			return
		}

		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}

		ctx := r.Context()

		set, res := g.store.Load(ctx, bingo.CollectionParticipants)
		if !res.OK() {
			g.saveProblem(w, code, false, []string{storeNotice(bingo.CollectionParticipants, res)}, errs)
			return
		}
		participants := bingo.ParticipantsFrom(set)

		guesses := make(map[string]any, len(participants.Characters))
		for i, character := range participants.Characters {
			name := r.PostForm.Get(fmt.Sprintf(guessField, i))
			if slices.Contains(participants.RealNames, name) {
				guesses[character] = name
			}
		}

		notices := []string{storeNotice(bingo.CollectionParticipants, res)}
		results := []records.Result{}

		res = g.store.Update(ctx, bingo.CollectionBets, func(bets records.RecordSet) error {
			bets[code] = guesses
			return nil
		})
		notices = append(notices, storeNotice(bingo.CollectionBets, res))
		results = append(results, res)

		if name := truncate(strings.TrimSpace(r.PostForm.Get(nameField)), maxNameLength); name != "" && res.OK() {
			res = g.store.Update(ctx, bingo.CollectionCodeLinks, func(links records.RecordSet) error {
				links[code] = name
				return nil
			})
			notices = append(notices, storeNotice(bingo.CollectionCodeLinks, res))
			results = append(results, res)
		}

		saved := !slices.ContainsFunc(results, func(x records.Result) bool { return !x.OK() })
		degraded := slices.ContainsFunc(results, func(x records.Result) bool { return x.Degraded })

		if !saved || degraded {
			g.saveProblem(w, code, saved, notices, errs)
			return
		}

		logf(g.cfg, "GAMES: Saved %d bets for %s from %s", len(guesses), code, realIP(r))

		http.Redirect(w, r, g.cfg.prefix+"/bets/"+url.PathEscape(code)+"?"+savedParameter+"=1", http.StatusSeeOther)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

// saveProblem reports a save that failed or only reached the local copy.
func (g *Game) saveProblem(w http.ResponseWriter, code string, saved bool, notices []string, errs chan<- error) {
	v := &view{Title: "Save problem", Code: code}
	for _, n := range notices {
		if n != "" {
			v.Notices = append(v.Notices, n)
		}
	}

	status := http.StatusServiceUnavailable
	if saved {
		status = http.StatusOK
		v.Title = "Saved locally"
		v.Success = "Your bets are saved, but only on this server."
	}

	render(g.cfg, w, status, "notice.html", v, errs)
}

func (g *Game) checkPassword(given string) bool {
	want := g.cfg.adminPassword
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(want)) == 1
}

func (g *Game) serveReveal(errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		v := &view{Title: "Official reveal"}
		if g.cfg.adminPassword == "" {
			v.Warning = "Reveals are disabled until an admin password is configured."
		}

		render(g.cfg, w, http.StatusOK, "reveal.html", v, errs)
	}
}

func (g *Game) postReveal(errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}

		v := &view{Title: "Official reveal"}

		password := r.PostForm.Get(passwordField)
		if !g.checkPassword(password) {
			logf(g.cfg, "GAMES: Rejected reveal password from %s", realIP(r))
			v.Warning = "Wrong or missing password."
			render(g.cfg, w, http.StatusForbidden, "reveal.html", v, errs)
			return
		}

		ctx := r.Context()

		if r.PostForm.Get(confirmField) != "" {
			set, res := g.store.Load(ctx, bingo.CollectionParticipants)
			participants := bingo.ParticipantsFrom(set)
			v.Notices = append(v.Notices, storeNotice(bingo.CollectionParticipants, res))

			res = g.store.Update(ctx, bingo.CollectionReveals, func(reveals records.RecordSet) error {
				for i, character := range participants.Characters {
					name := r.PostForm.Get(fmt.Sprintf(revealField, i))
					if name == bingo.NotRevealed || slices.Contains(participants.RealNames, name) {
						reveals[character] = name
					}
				}
				return nil
			})
			v.Notices = append(v.Notices, storeNotice(bingo.CollectionReveals, res))

			if res.OK() {
				v.Success = "Reveals saved!"
				logf(g.cfg, "GAMES: Reveals updated by %s", realIP(r))
				g.feed.Publish(FeedMessage{Type: "refresh", Reason: "reveals"})
			}
		}

		s := g.snapshot(ctx)

		v.Unlocked = true
		v.Password = password
		v.Notices = append(v.Notices, s.notices...)
		v.Notices = slices.DeleteFunc(slices.Compact(v.Notices), func(n string) bool { return n == "" })
		v.Card = card(s.participants.Characters, append([]string{bingo.NotRevealed}, s.participants.RealNames...), revealField, s.reveals.Current)

		render(g.cfg, w, http.StatusOK, "reveal.html", v, errs)
	}
}

func (g *Game) serveRanking(errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		s := g.snapshot(r.Context())

		v := &view{Title: "Ranking", Notices: s.notices}

		if !s.reveals.AnyRevealed() {
			v.NoReveals = true
			render(g.cfg, w, http.StatusOK, "ranking.html", v, errs)
			return
		}

		for i, standing := range bingo.Rank(s.bets, s.reveals, s.participants.Characters) {
			sv := standingView{
				Place:  i + 1,
				Label:  standing.Code,
				Points: standing.Points,
			}
			if name, ok := s.links[standing.Code]; ok {
				sv.Label = name
			}

			for _, character := range standing.Matched {
				identity := s.identities[character]
				name, _ := s.reveals.Revealed(character)
				sv.Matched = append(sv.Matched, matchedView{
					Character: character,
					Name:      name,
					Photo:     g.photoURL(identity.Photo),
				})
			}

			v.Standings = append(v.Standings, sv)
		}

		render(g.cfg, w, http.StatusOK, "ranking.html", v, errs)
	}
}

// photoURL maps an identity photo to something the page can load: web URLs
// pass through, bare file names are served from the photo directory.
func (g *Game) photoURL(photo string) string {
	switch {
	case photo == "":
		return ""
	case strings.HasPrefix(photo, "https://"), strings.HasPrefix(photo, "http://"):
		return photo
	case g.cfg.photoDir == "":
		return ""
	default:
		return g.cfg.prefix + "/photos/" + url.PathEscape(path.Base(strings.ReplaceAll(photo, `\`, "/")))
	}
}

func (g *Game) servePhoto(errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if g.cfg.photoDir == "" {
			http.NotFound(w, r)
			return
		}

		name := path.Base(p.ByName("file"))
		if name == "." || name == "/" {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Cache-Control", "public, max-age=3600")
		securityHeaders(g.cfg, w)

		http.ServeFileFS(w, r, os.DirFS(g.cfg.photoDir), name)
	}
}

// serveQR returns a PNG QR code linking to the player's card.
func serveQR(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		code, ok := cleanCode(p.ByName("code"))
		if !ok {
			http.Error(w, "invalid code", http.StatusBadRequest)
			return
		}

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		link := scheme + "://" + r.Host + cfg.prefix + "/bets/" + url.PathEscape(code)

		png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}

func (g *Game) serveDebug(errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		name := p.ByName("collection")

		status := http.StatusOK
		var body any

		preview, err := g.store.Preview(r.Context(), name, previewRows)
		switch {
		case errors.Is(err, records.ErrUnavailable):
			status, body = http.StatusServiceUnavailable, map[string]string{"error": err.Error()}
		case errors.Is(err, records.ErrSheetNotFound), errors.Is(err, records.ErrEmptySheet):
			status, body = http.StatusNotFound, map[string]string{"error": err.Error()}
		case err != nil:
			status, body = http.StatusBadGateway, map[string]string{"error": err.Error()}
		default:
			body = preview
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		securityHeaders(g.cfg, w)
		w.WriteHeader(status)

		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(body); err != nil {
			errs <- err

			return
		}

		logf(g.cfg, "SERVE: Sheet preview of %q to %s in %s", name, realIP(r), time.Since(startTime).Round(time.Microsecond))
	}
}

func registerGame(cfg *Config, g *Game, mux *httprouter.Router, errs chan<- error) {
	mux.GET(cfg.prefix+"/bets", serveBets(cfg, errs))
	mux.POST(cfg.prefix+"/bets", serveNewCode(cfg, errs))
	mux.GET(cfg.prefix+"/bets/:code", g.serveCard(errs))
	mux.POST(cfg.prefix+"/bets/:code", g.saveCard(errs))

	mux.GET(cfg.prefix+"/code/:code/qr", serveQR(cfg))

	mux.GET(cfg.prefix+"/reveal", g.serveReveal(errs))
	mux.POST(cfg.prefix+"/reveal", g.postReveal(errs))

	mux.GET(cfg.prefix+"/ranking", g.serveRanking(errs))
	mux.GET(cfg.prefix+"/ranking/ws", serveFeed(cfg, g.feed))

	mux.GET(cfg.prefix+"/photos/:file", g.servePhoto(errs))

	if cfg.debug {
		mux.GET(cfg.prefix+"/debug/:collection", g.serveDebug(errs))
	}
}
