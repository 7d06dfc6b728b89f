//go:build jack
// +build jack

package sfzcore

import (
	"fmt"

	"github.com/GeoffreyPlitt/debuggo"
	"github.com/xthexder/go-jack"
	midi "gitlab.com/gomidi/midi/v2"
)

var jackDebug = debuggo.Debug("sfzcore:jack")

// JackClient is the realtime audio host glue (spec.md §7 "host
// integration"). It owns no voice or region state itself -- all of
// that lives in Engine -- it just pumps JACK's process callback into
// Engine.RenderBlock and decodes JACK's raw MIDI buffer into
// Engine.NoteOn/NoteOff/CC the same way any other host would.
type JackClient struct {
	client      *jack.Client
	engine      *Engine
	audioOutL   *jack.Port
	audioOutR   *jack.Port
	midiInPort  *jack.Port
	sampleRate  uint32
	bufferSize  uint32
	interleaved []float32
}

// NewJackClient opens a JACK client wired to engine. clientName is the
// name JACK shows other clients in the graph.
func NewJackClient(engine *Engine, clientName string) (*JackClient, error) {
	jackDebug("Creating JACK client: %s", clientName)

	client, err := jack.ClientOpen(clientName, jack.NoStartServer)
	if err != nil {
		return nil, fmt.Errorf("failed to open JACK client: %w", err)
	}

	jc := &JackClient{
		client:     client,
		engine:     engine,
		sampleRate: uint32(client.GetSampleRate()),
		bufferSize: uint32(client.GetBufferSize()),
	}
	jc.interleaved = make([]float32, jc.bufferSize*2)

	audioOutL, err := client.PortRegister("audio_out_l", jack.DEFAULT_AUDIO_TYPE, jack.PortIsOutput, 0)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to register left output port: %w", err)
	}
	jc.audioOutL = audioOutL

	audioOutR, err := client.PortRegister("audio_out_r", jack.DEFAULT_AUDIO_TYPE, jack.PortIsOutput, 0)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to register right output port: %w", err)
	}
	jc.audioOutR = audioOutR

	midiInPort, err := client.PortRegister("midi_in", jack.DEFAULT_MIDI_TYPE, jack.PortIsInput, 0)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to register MIDI input port: %w", err)
	}
	jc.midiInPort = midiInPort

	client.SetProcessCallback(jc.processCallback)

	jackDebug("JACK client created (sample rate: %d Hz, buffer size: %d)", jc.sampleRate, jc.bufferSize)
	return jc, nil
}

// Start activates the JACK client and begins audio processing.
func (jc *JackClient) Start() error {
	jackDebug("Starting JACK client")
	if err := jc.client.Activate(); err != nil {
		return fmt.Errorf("failed to activate JACK client: %w", err)
	}
	return nil
}

// Stop deactivates the JACK client.
func (jc *JackClient) Stop() error {
	jackDebug("Stopping JACK client")
	if err := jc.client.Deactivate(); err != nil {
		return fmt.Errorf("failed to deactivate JACK client: %w", err)
	}
	return nil
}

// Close closes the JACK client connection.
func (jc *JackClient) Close() error {
	jackDebug("Closing JACK client")
	if err := jc.client.Close(); err != nil {
		return fmt.Errorf("failed to close JACK client: %w", err)
	}
	return nil
}

// processCallback is JACK's realtime callback. It decodes MIDI first
// so note events land at the right sample delay within the block,
// then renders the whole block through Engine.RenderBlock.
func (jc *JackClient) processCallback(nframes uint32) int {
	outL := jack.GetAudioSamples(jc.audioOutL.GetBuffer(nframes), nframes)
	outR := jack.GetAudioSamples(jc.audioOutR.GetBuffer(nframes), nframes)

	jc.processMidiEvents(jc.midiInPort.GetBuffer(nframes), nframes)

	if int(nframes)*2 > len(jc.interleaved) {
		jc.interleaved = make([]float32, nframes*2)
	}
	buf := jc.interleaved[:nframes*2]
	for i := range buf {
		buf[i] = 0
	}
	jc.engine.RenderBlock(buf, int(nframes))

	for i := uint32(0); i < nframes; i++ {
		outL[i] = jack.AudioSample(buf[i*2])
		outR[i] = jack.AudioSample(buf[i*2+1])
	}
	return 0
}

// processMidiEvents decodes JACK's raw MIDI buffer through
// gomidi/midi/v2's Message type and dispatches each event via
// DecodeShortMessage, stamping it with its in-block sample delay so
// the voice manager and modulation matrix see the same timing JACK
// delivered.
func (jc *JackClient) processMidiEvents(midiBuffer *jack.PortBuffer, nframes uint32) {
	eventCount := jack.MidiGetEventCount(midiBuffer)
	if eventCount == 0 {
		return
	}

	table := jc.engine.table.Load()
	table.acquire()
	defer table.release()

	for i := uint32(0); i < eventCount; i++ {
		event, err := jack.MidiEventGet(midiBuffer, i)
		if err != nil || len(event.Buffer) < 1 {
			continue
		}
		delay := int(event.Time)
		msg := midi.Message(event.Buffer)
		DecodeShortMessage(msg, delay, jc.engine.midi, jc.engine.voices, table)
	}
}
