package server

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/npezzotti/go-multilingo/internal/audio"
	"github.com/npezzotti/go-multilingo/internal/database"
	"github.com/npezzotti/go-multilingo/internal/stats"
	"github.com/npezzotti/go-multilingo/internal/transcribe"
	"github.com/npezzotti/go-multilingo/internal/translate"
	"github.com/npezzotti/go-multilingo/internal/types"
)

const (
	// transcriptions below this confidence are discarded outright
	confidenceFloor = 0.4
	// units shorter than a tenth of a second carry no speech
	minUnitSamples = audio.CanonicalSampleRate / 10
)

// Pipeline turns one finished audio unit into a per-participant set of
// transcript messages. It never touches room state: callers pass a roster
// snapshot in and dispatch the result themselves.
type Pipeline struct {
	engine     transcribe.Engine
	translator translate.Translator
	db         database.MultilingoRepository
	log        *log.Logger
	stats      stats.StatsProvider

	transcribeTimeout time.Duration
	translateTimeout  time.Duration
}

func NewPipeline(engine transcribe.Engine, translator translate.Translator, db database.MultilingoRepository,
	l *log.Logger, sp stats.StatsProvider, transcribeTimeout, translateTimeout time.Duration) *Pipeline {
	return &Pipeline{
		engine:            engine,
		translator:        translator,
		db:                db,
		log:               l,
		stats:             sp,
		transcribeTimeout: transcribeTimeout,
		translateTimeout:  translateTimeout,
	}
}

// Process runs a unit end to end. It returns the per-user messages to
// dispatch and false when the unit produced nothing broadcastable (bad
// container, silence, low confidence, engine failure). Persistence happens
// asynchronously and never blocks the result.
func (p *Pipeline) Process(ctx context.Context, roomId, speakerId int, roster []types.Participant, unit []byte) (map[int]*ServerMessage, bool) {
	var speaker *types.Participant
	for i := range roster {
		if roster[i].UserId == speakerId {
			speaker = &roster[i]
			break
		}
	}
	if speaker == nil {
		p.log.Printf("speaker %d not in roster, dropping unit", speakerId)
		p.stats.Incr(stats.UnitsDropped)
		return nil, false
	}

	wav, ok := p.canonicalize(unit)
	if !ok {
		return nil, false
	}

	result, ok := p.transcribeUnit(ctx, wav, speaker.Language)
	if !ok {
		return nil, false
	}

	unitId := uuid.NewString()
	timestamp := Now()

	translations := p.translateForRoster(ctx, result, roster)

	messages := make(map[int]*ServerMessage, len(roster))
	for _, participant := range roster {
		msg := &types.TranscriptMessage{
			UnitId:         unitId,
			SpeakerId:      speaker.UserId,
			SpeakerName:    speaker.UserName,
			OriginalText:   result.Text,
			Language:       result.Language,
			TargetLanguage: participant.TranslateTo,
			Timestamp:      timestamp,
		}
		// the speaker always reads their own words verbatim
		if participant.UserId != speaker.UserId && participant.TranslateTo != result.Language {
			if translated, ok := translations[participant.TranslateTo]; ok {
				msg.TranslatedText = &translated
			}
		}
		messages[participant.UserId] = newTranscription(msg)
	}

	go p.persist(roomId, speaker.UserId, speaker.UserName, unitId, result, translations, roster)

	p.stats.Incr(stats.UnitsProcessed)
	return messages, true
}

// canonicalize decodes the incoming container and reshapes the samples to
// the mono 16kHz form the engine expects.
func (p *Pipeline) canonicalize(unit []byte) ([]byte, bool) {
	samples, format, err := audio.DecodeWav(unit)
	if err != nil {
		p.log.Println("undecodable audio unit:", err)
		p.stats.Incr(stats.UnitsDropped)
		return nil, false
	}

	samples = audio.Downmix(samples, format.Channels)
	samples = audio.Resample(samples, format.SampleRate, audio.CanonicalSampleRate)

	if len(samples) < minUnitSamples {
		p.stats.Incr(stats.UnitsDropped)
		return nil, false
	}

	return audio.EncodeWav(samples, audio.CanonicalFormat()), true
}

func (p *Pipeline) transcribeUnit(ctx context.Context, wav []byte, forcedLanguage string) (transcribe.Result, bool) {
	tctx, cancel := context.WithTimeout(ctx, p.transcribeTimeout)
	defer cancel()

	result, err := p.engine.Transcribe(tctx, wav, forcedLanguage)
	if err != nil {
		p.log.Println("transcription failed:", err)
		p.stats.Incr(stats.UnitsDropped)
		return transcribe.Result{}, false
	}

	result.Text = strings.TrimSpace(result.Text)
	if result.Text == "" {
		p.stats.Incr(stats.UnitsDropped)
		return transcribe.Result{}, false
	}

	if result.Confidence < confidenceFloor {
		p.log.Printf("discarding low confidence transcription (%.2f): %q", result.Confidence, result.Text)
		p.stats.Incr(stats.UnitsDropped)
		return transcribe.Result{}, false
	}

	if result.Language == "" {
		result.Language = forcedLanguage
	}

	return result, true
}

// translateForRoster produces one translation per distinct target language
// among online participants. A failed translation falls back to the source
// text so listeners are never left with a gap.
func (p *Pipeline) translateForRoster(ctx context.Context, result transcribe.Result, roster []types.Participant) map[string]string {
	targets := make(map[string]struct{})
	for _, participant := range roster {
		if !participant.Online || participant.TranslateTo == result.Language {
			continue
		}
		targets[participant.TranslateTo] = struct{}{}
	}

	translations := make(map[string]string, len(targets))
	for target := range targets {
		tctx, cancel := context.WithTimeout(ctx, p.translateTimeout)
		translated, err := p.translator.Translate(tctx, result.Text, result.Language, target)
		cancel()
		p.stats.Incr(stats.TranslationCalls)
		if err != nil {
			p.log.Printf("translate to %q failed, falling back to source text: %v", target, err)
			translated = result.Text
		}
		translations[target] = translated
	}

	return translations
}

// persist writes the unit's transcription, its translations and the
// per-language message projections. Database failures are logged and
// otherwise ignored: the live transcript has already gone out.
func (p *Pipeline) persist(roomId, speakerId int, speakerName, unitId string, result transcribe.Result,
	translations map[string]string, roster []types.Participant) {
	transcription, err := p.db.CreateTranscription(database.Transcription{
		UnitId:           unitId,
		AccountId:        speakerId,
		RoomId:           roomId,
		OriginalText:     result.Text,
		DetectedLanguage: result.Language,
		Confidence:       result.Confidence,
	})
	if err != nil {
		p.log.Println("failed to persist transcription:", err)
		return
	}

	for target, text := range translations {
		if err := p.db.CreateTranslation(database.Translation{
			TranscriptionId: transcription.Id,
			TargetLanguage:  target,
			TranslatedText:  text,
		}); err != nil {
			p.log.Printf("failed to persist translation to %q: %v", target, err)
		}
	}

	seen := make(map[string]struct{})
	for _, participant := range roster {
		if _, ok := seen[participant.TranslateTo]; ok {
			continue
		}
		seen[participant.TranslateTo] = struct{}{}

		var translated *string
		if text, ok := translations[participant.TranslateTo]; ok && participant.TranslateTo != result.Language {
			translated = &text
		}
		if err := p.db.CreateMessage(database.Message{
			RoomId:           roomId,
			AccountId:        speakerId,
			UnitId:           unitId,
			SpeakerName:      speakerName,
			OriginalText:     result.Text,
			OriginalLanguage: result.Language,
			TranslatedText:   translated,
			TargetLanguage:   participant.TranslateTo,
		}); err != nil {
			p.log.Printf("failed to persist message for %q: %v", participant.TranslateTo, err)
		}
	}
}
