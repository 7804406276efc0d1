package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	wav "github.com/youpy/go-wav"

	"github.com/drgolem/tomu/internal/config"
	"github.com/drgolem/tomu/pkg/audioframe"
	"github.com/drgolem/tomu/pkg/convert"
	"github.com/drgolem/tomu/pkg/convert/soxr"
	"github.com/drgolem/tomu/pkg/decoders"
	"github.com/drgolem/tomu/pkg/pcm"
	"github.com/drgolem/tomu/pkg/types"
)

var transformCmd = &cobra.Command{
	Use:   "transform <input_file>",
	Short: "Transform audio file sample rate and format",
	Long: `Transform audio files to different sample rates and convert to WAV format.
Supports every input format the player reads, with optional mono conversion.

Examples:
  # Transform MP3 to 48kHz WAV
  tomu transform input.mp3 --new-samplerate 48000 --out output.wav

  # Transform FLAC to 44.1kHz mono WAV
  tomu transform input.flac --new-samplerate 44100 --mono --out output.wav

  # Render a test tone
  tomu transform tone:1000:3s --out tone.wav

Output Format:
  - WAV (16-bit PCM)

Sample Rate Options:
  Common rates: 8000, 16000, 22050, 44100, 48000, 96000, 192000 Hz`,
	Args: cobra.ExactArgs(1),
	RunE: runTransform,
}

func init() {
	rootCmd.AddCommand(transformCmd)

	transformCmd.Flags().Int("new-samplerate", 48000, "Target sample rate in Hz")
	transformCmd.Flags().String("out", "out_transformed.wav", "Output WAV file path")
	transformCmd.Flags().Bool("mono", false, "Convert output to mono signal (average channels)")
}

func runTransform(cmd *cobra.Command, args []string) error {
	inFileName := args[0]
	logger := setupLogging(viper.GetBool(config.KeyVerbose), false)

	newSampleRate, err := cmd.Flags().GetInt("new-samplerate")
	if err != nil {
		return err
	}
	outFileName, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}
	convertToMono, err := cmd.Flags().GetBool("mono")
	if err != nil {
		return err
	}

	if newSampleRate <= 0 || newSampleRate > 384000 {
		return fmt.Errorf("invalid sample rate %d, valid range 1-384000", newSampleRate)
	}

	src, err := decoders.NewDecoder(cmd.Context(), inFileName)
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	defer src.Close()

	info := src.Info()
	if info.Duration == 0 && info.Codec == "tone" {
		return errors.New("tone transform needs a duration, e.g. tone:440:5s")
	}

	logger.Info("Audio transformation starting",
		"input_file", inFileName,
		"input_sample_rate", info.SampleRate,
		"input_channels", info.Channels,
		"input_format", info.SourceFormat.String(),
		"output_sample_rate", newSampleRate,
		"output_mono", convertToMono,
		"output_file", outFileName)

	audioData, skipped, err := decodeAllAudio(src, newSampleRate)
	if err != nil {
		return fmt.Errorf("failed to decode audio: %w", err)
	}

	channels := info.Channels
	outSamples := len(audioData) / (channels * 2)
	logger.Info("Decoding complete",
		"output_samples", outSamples,
		"output_bytes", len(audioData),
		"skipped_units", skipped)

	outChannels := channels
	outputData := audioData
	if convertToMono && channels > 1 {
		logger.Info("Converting to mono", "input_channels", channels)
		outputData = convertToMono16Bit(audioData, channels)
		outChannels = 1
	}

	logger.Info("Writing output WAV file", "path", outFileName)
	if err := writeWAVFile(outFileName, outputData, uint32(outSamples), uint16(outChannels), uint32(newSampleRate), 16); err != nil {
		return fmt.Errorf("failed to write WAV file: %w", err)
	}

	logger.Info("Transformation complete",
		"output_samples", outSamples,
		"sample_rate_ratio", fmt.Sprintf("%.3f", float64(newSampleRate)/float64(info.SampleRate)))
	return nil
}

// decodeAllAudio reads the whole stream into memory as interleaved S16 at
// toRate, resampling with soxr when the rates differ.
func decodeAllAudio(src types.Source, toRate int) ([]byte, int, error) {
	info := src.Info()
	in := audioframe.FrameFormat{
		SampleRate:   info.SampleRate,
		Channels:     info.Channels,
		SampleFormat: info.SourceFormat,
	}
	out := audioframe.FrameFormat{
		SampleRate:   toRate,
		Channels:     info.Channels,
		SampleFormat: pcm.S16,
	}

	var opts []convert.Option
	if in.SampleRate != toRate {
		slog.Info("Resampling audio", "from_rate", in.SampleRate, "to_rate", toRate)
		rc, err := soxr.New(in.SampleRate, toRate, in.Channels)
		if err != nil {
			return nil, 0, err
		}
		opts = append(opts, convert.WithRateConverter(rc))
	}
	conv, err := convert.New(in, out, opts...)
	if err != nil {
		return nil, 0, err
	}
	defer conv.Close()

	audioData := make([]byte, 0, 1<<20)
	skipped := 0
	for {
		frame, err := src.NextFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, types.ErrSkipUnit) {
			skipped++
			continue
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("decode error: %w", err)
		}

		data, err := conv.Convert(frame)
		if err != nil {
			return nil, skipped, err
		}
		audioData = append(audioData, data...)
	}

	tail, err := conv.Flush()
	if err != nil {
		return nil, skipped, err
	}
	return append(audioData, tail...), skipped, nil
}

// convertToMono16Bit converts stereo (or multi-channel) 16-bit audio to mono by averaging channels
func convertToMono16Bit(data []byte, channels int) []byte {
	if channels == 1 {
		return data
	}

	frameSize := channels * 2
	monoData := make([]byte, len(data)/frameSize*2)

	for i := 0; i+frameSize <= len(data); i += frameSize {
		sum := 0.0
		for ch := 0; ch < channels; ch++ {
			sum += pcm.Sample(data[i+ch*2:], pcm.S16)
		}
		pcm.PutSample(monoData[i/channels:], pcm.S16, sum/float64(channels))
	}
	return monoData
}

// writeWAVFile writes audio data to a WAV file
func writeWAVFile(fileName string, audioData []byte, numSamples uint32, numChannels uint16, sampleRate uint32, bitsPerSample uint16) error {
	fOut, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer fOut.Close()

	wavWriter := wav.NewWriter(fOut, numSamples, numChannels, sampleRate, bitsPerSample)

	if _, err := wavWriter.Write(audioData); err != nil {
		return fmt.Errorf("failed to write WAV data: %w", err)
	}

	return nil
}
