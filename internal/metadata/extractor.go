// Пакет metadata — адаптер извлечения метаданных из аудиофайлов.
//
// Описательные поля (title, artist, album, genre, year, comment) читаются
// тегами контейнера через dhowden/tag. Технические поля (duration, bitrate,
// sample rate) — проходом по кадрам MP3 (tcolgate/mp3), блоку STREAMINFO
// FLAC (mewkiz/flac) или заголовку WAV.
//
// Контракт: извлечение никогда не завершает pipeline ошибкой. Любой сбой
// разбора логируется как warning и превращается в пустой результат.
package metadata

import (
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/mewkiz/flac"
	"github.com/tcolgate/mp3"
)

// Metadata — результат извлечения. nil-поле означает «значение отсутствует».
type Metadata struct {
	// DurationSeconds — длительность, округлённая до целых секунд
	DurationSeconds *int64
	// Bitrate — битрейт в бит/с, округлённый до целого
	Bitrate *int64
	// SampleRate — частота дискретизации в Гц, без округления
	SampleRate *int64

	Title   *string
	Artist  *string
	Album   *string
	Genre   *string
	Year    *int
	Comment *string
}

// Empty сообщает, что извлечение не дало ни одного поля.
func (m Metadata) Empty() bool {
	return m.DurationSeconds == nil && m.Bitrate == nil && m.SampleRate == nil &&
		m.Title == nil && m.Artist == nil && m.Album == nil &&
		m.Genre == nil && m.Year == nil && m.Comment == nil
}

// Extractor — адаптер извлечения метаданных.
type Extractor struct {
	logger *slog.Logger
}

// New создаёт Extractor.
func New(logger *slog.Logger) *Extractor {
	return &Extractor{
		logger: logger.With(slog.String("component", "metadata_extractor")),
	}
}

// Extract возвращает best-effort метаданные blob по его пути на диске.
// Не возвращает ошибок: нечитаемый или не-аудио файл даёт пустой результат.
func (e *Extractor) Extract(path string) (result Metadata) {
	// Библиотеки разбора тегов работают с недоверенным вводом;
	// panic внутри разбора не должен убить pipeline.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("Разбор метаданных прерван panic",
				slog.String("path", path),
				slog.Any("panic", r),
			)
			result = Metadata{}
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		e.logger.Warn("Не удалось открыть файл для извлечения метаданных",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return Metadata{}
	}
	defer f.Close()

	result = Metadata{}
	e.extractTags(f, path, &result)
	e.extractTechnical(f, path, &result)
	return result
}

// extractTags читает описательные поля тегов контейнера (ID3, Vorbis comment, MP4).
func (e *Extractor) extractTags(f *os.File, path string, out *Metadata) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return
	}

	m, err := tag.ReadFrom(f)
	if err != nil {
		// Отсутствие тегов — штатная ситуация, не warning
		if !errors.Is(err, tag.ErrNoTagsFound) {
			e.logger.Warn("Не удалось разобрать теги",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	out.Title = nonEmpty(m.Title())
	out.Artist = nonEmpty(m.Artist())
	out.Album = nonEmpty(m.Album())
	out.Genre = nonEmpty(m.Genre())
	out.Comment = nonEmpty(m.Comment())
	if y := m.Year(); y != 0 {
		out.Year = &y
	}
}

// extractTechnical заполняет duration/bitrate/sample rate по формату контейнера.
func (e *Extractor) extractTechnical(f *os.File, path string, out *Metadata) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		e.probeMP3(f, path, out)
	case ".flac":
		e.probeFLAC(path, out)
	case ".wav":
		e.probeWAV(f, path, out)
	}
	// Остальные контейнеры: технические поля остаются пустыми
}

// probeMP3 проходит по всем кадрам MP3, суммируя длительность и байты.
// Битрейт считается средним по файлу (корректно и для VBR).
func (e *Extractor) probeMP3(f *os.File, path string, out *Metadata) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return
	}

	d := mp3.NewDecoder(f)
	var frame mp3.Frame
	var skipped int

	var total time.Duration
	var bytes int64
	var sampleRate int64
	frames := 0

	for {
		if err := d.Decode(&frame, &skipped); err != nil {
			if err != io.EOF && frames == 0 {
				e.logger.Warn("Не удалось разобрать кадры MP3",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
			}
			break
		}
		total += frame.Duration()
		bytes += int64(frame.Size())
		if sampleRate == 0 {
			sampleRate = int64(frame.Header().SampleRate())
		}
		frames++
	}

	if frames == 0 || total <= 0 {
		return
	}

	out.DurationSeconds = roundSeconds(total)
	out.Bitrate = roundBitrate(bytes, total)
	if sampleRate > 0 {
		out.SampleRate = &sampleRate
	}
}

// probeFLAC читает блок STREAMINFO.
func (e *Extractor) probeFLAC(path string, out *Metadata) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		e.logger.Warn("Не удалось разобрать FLAC STREAMINFO",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return
	}
	defer stream.Close()

	info := stream.Info
	if info == nil || info.SampleRate == 0 {
		return
	}

	sampleRate := int64(info.SampleRate)
	out.SampleRate = &sampleRate

	if info.NSamples > 0 {
		total := time.Duration(float64(info.NSamples) / float64(info.SampleRate) * float64(time.Second))
		out.DurationSeconds = roundSeconds(total)

		if fi, err := os.Stat(path); err == nil {
			out.Bitrate = roundBitrate(fi.Size(), total)
		}
	}
}

// wavFmt — поля чанка "fmt " каноничного WAV (RIFF, little-endian).
type wavFmt struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// probeWAV разбирает заголовок RIFF/WAVE: sample rate и byte rate из "fmt ",
// длительность из размера чанка "data".
func (e *Extractor) probeWAV(f *os.File, path string, out *Metadata) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return
	}

	var riff [12]byte
	if _, err := io.ReadFull(f, riff[:]); err != nil {
		return
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return
	}

	var fmtChunk wavFmt
	var dataSize uint32
	haveFmt := false

	// Последовательный проход по чанкам до "fmt " и "data"
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(f, hdr[:]); err != nil {
			break
		}
		chunkID := string(hdr[0:4])
		chunkSize := binary.LittleEndian.Uint32(hdr[4:8])

		switch chunkID {
		case "fmt ":
			if err := binary.Read(io.LimitReader(f, int64(chunkSize)), binary.LittleEndian, &fmtChunk); err != nil {
				return
			}
			haveFmt = true
			// Пропускаем расширение чанка, если размер больше стандартных 16 байт
			if chunkSize > 16 {
				if _, err := f.Seek(int64(chunkSize-16), io.SeekCurrent); err != nil {
					return
				}
			}
		case "data":
			dataSize = chunkSize
		default:
			if _, err := f.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				return
			}
		}

		if haveFmt && dataSize > 0 {
			break
		}
		if chunkID == "data" {
			// Не читаем сами сэмплы, перескакиваем
			if _, err := f.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				break
			}
		}
	}

	if !haveFmt || fmtChunk.SampleRate == 0 || fmtChunk.ByteRate == 0 {
		return
	}

	sampleRate := int64(fmtChunk.SampleRate)
	out.SampleRate = &sampleRate

	bitrate := int64(fmtChunk.ByteRate) * 8
	out.Bitrate = &bitrate

	if dataSize > 0 {
		total := time.Duration(float64(dataSize) / float64(fmtChunk.ByteRate) * float64(time.Second))
		out.DurationSeconds = roundSeconds(total)
	}
}

// roundSeconds округляет длительность до целых секунд.
func roundSeconds(d time.Duration) *int64 {
	s := int64(math.Round(d.Seconds()))
	return &s
}

// roundBitrate вычисляет средний битрейт (бит/с), округлённый до целого.
func roundBitrate(bytes int64, d time.Duration) *int64 {
	if d <= 0 {
		return nil
	}
	b := int64(math.Round(float64(bytes) * 8 / d.Seconds()))
	return &b
}

// nonEmpty возвращает указатель на строку или nil для пустой строки.
func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
