//go:build nvenc

package nvenc

/*
#cgo LDFLAGS: -lnvidia-encode
#include <string.h>
#include <stdint.h>
#include <nvEncodeAPI.h>

// The encoder API is a table of function pointers filled in by
// NvEncodeAPICreateInstance. cgo cannot call through function pointers or
// set bitfield members, so every call site lives in one of these shims.

typedef struct {
	int codec;   // 0 h264, 1 hevc
	int profile; // see profile_guid
	int preset;  // 1..7
	int tuning;  // 0 hq, 1 lowlatency, 2 ultralowlatency, 3 lossless
	int rc;      // 0 constqp, 1 vbr, 2 cbr
	int width, height;
	int fps;
	int gop; // 0 = infinite
	int bframes;
	int avg_bitrate, max_bitrate, vbv_size;
	int const_qp, qmin, qmax, target_quality;
	int ten_bit;
	int yuv444;
} enc_cfg;

static NVENCSTATUS check_api_version(void) {
	uint32_t ver = 0;
	NVENCSTATUS st = NvEncodeAPIGetMaxSupportedVersion(&ver);
	if (st != NV_ENC_SUCCESS) {
		return st;
	}
	uint32_t need = (NVENCAPI_MAJOR_VERSION << 4) | NVENCAPI_MINOR_VERSION;
	if (ver < need) {
		return NV_ENC_ERR_INVALID_VERSION;
	}
	return NV_ENC_SUCCESS;
}

static NVENCSTATUS open_api(NV_ENCODE_API_FUNCTION_LIST *fl) {
	memset(fl, 0, sizeof(*fl));
	fl->version = NV_ENCODE_API_FUNCTION_LIST_VER;
	return NvEncodeAPICreateInstance(fl);
}

static NVENCSTATUS open_session(NV_ENCODE_API_FUNCTION_LIST *fl, void *cuctx, void **enc) {
	NV_ENC_OPEN_ENCODE_SESSION_EX_PARAMS p;
	memset(&p, 0, sizeof(p));
	p.version = NV_ENC_OPEN_ENCODE_SESSION_EX_PARAMS_VER;
	p.deviceType = NV_ENC_DEVICE_TYPE_CUDA;
	p.device = cuctx;
	p.apiVersion = NVENCAPI_VERSION;
	return fl->nvEncOpenEncodeSessionEx(&p, enc);
}

static GUID codec_guid(int codec) {
	return codec ? NV_ENC_CODEC_HEVC_GUID : NV_ENC_CODEC_H264_GUID;
}

static GUID preset_guid(int p) {
	switch (p) {
	case 1: return NV_ENC_PRESET_P1_GUID;
	case 2: return NV_ENC_PRESET_P2_GUID;
	case 3: return NV_ENC_PRESET_P3_GUID;
	case 5: return NV_ENC_PRESET_P5_GUID;
	case 6: return NV_ENC_PRESET_P6_GUID;
	case 7: return NV_ENC_PRESET_P7_GUID;
	default: return NV_ENC_PRESET_P4_GUID;
	}
}

static NV_ENC_TUNING_INFO tuning_info(int t) {
	switch (t) {
	case 1: return NV_ENC_TUNING_INFO_LOW_LATENCY;
	case 2: return NV_ENC_TUNING_INFO_ULTRA_LOW_LATENCY;
	case 3: return NV_ENC_TUNING_INFO_LOSSLESS;
	default: return NV_ENC_TUNING_INFO_HIGH_QUALITY;
	}
}

static GUID profile_guid(int codec, int prof) {
	if (codec == 0) {
		switch (prof) {
		case 1: return NV_ENC_H264_PROFILE_BASELINE_GUID;
		case 2: return NV_ENC_H264_PROFILE_MAIN_GUID;
		case 3: return NV_ENC_H264_PROFILE_HIGH_GUID;
		case 4: return NV_ENC_H264_PROFILE_HIGH_444_GUID;
		}
	} else {
		switch (prof) {
		case 2: return NV_ENC_HEVC_PROFILE_MAIN_GUID;
		case 5: return NV_ENC_HEVC_PROFILE_MAIN10_GUID;
		case 6: return NV_ENC_HEVC_PROFILE_FREXT_GUID;
		}
	}
	return NV_ENC_CODEC_PROFILE_AUTOSELECT_GUID;
}

static NV_ENC_PARAMS_RC_MODE rc_mode(int rc) {
	switch (rc) {
	case 0: return NV_ENC_PARAMS_RC_CONSTQP;
	case 2: return NV_ENC_PARAMS_RC_CBR;
	default: return NV_ENC_PARAMS_RC_VBR;
	}
}

static NVENCSTATUS init_encoder(NV_ENCODE_API_FUNCTION_LIST *fl, void *enc, enc_cfg *c) {
	GUID codec = codec_guid(c->codec);
	GUID preset = preset_guid(c->preset);
	NV_ENC_TUNING_INFO tuning = tuning_info(c->tuning);

	NV_ENC_PRESET_CONFIG pc;
	memset(&pc, 0, sizeof(pc));
	pc.version = NV_ENC_PRESET_CONFIG_VER;
	pc.presetCfg.version = NV_ENC_CONFIG_VER;
	NVENCSTATUS st = fl->nvEncGetEncodePresetConfigEx(enc, codec, preset, tuning, &pc);
	if (st != NV_ENC_SUCCESS) {
		return st;
	}
	NV_ENC_CONFIG cfg = pc.presetCfg;
	cfg.version = NV_ENC_CONFIG_VER;
	cfg.profileGUID = profile_guid(c->codec, c->profile);
	cfg.frameIntervalP = c->bframes + 1;
	cfg.gopLength = c->gop > 0 ? (uint32_t)c->gop : NVENC_INFINITE_GOPLENGTH;
	if (c->codec == 0) {
		cfg.encodeCodecConfig.h264Config.idrPeriod = cfg.gopLength;
		if (c->yuv444) {
			cfg.encodeCodecConfig.h264Config.chromaFormatIDC = 3;
		}
	} else {
		cfg.encodeCodecConfig.hevcConfig.idrPeriod = cfg.gopLength;
		if (c->yuv444) {
			cfg.encodeCodecConfig.hevcConfig.chromaFormatIDC = 3;
		}
		if (c->ten_bit) {
			cfg.encodeCodecConfig.hevcConfig.pixelBitDepthMinus8 = 2;
		}
	}

	cfg.rcParams.rateControlMode = rc_mode(c->rc);
	if (c->avg_bitrate > 0) {
		cfg.rcParams.averageBitRate = (uint32_t)c->avg_bitrate;
	}
	if (c->max_bitrate > 0) {
		cfg.rcParams.maxBitRate = (uint32_t)c->max_bitrate;
	}
	if (c->vbv_size > 0) {
		cfg.rcParams.vbvBufferSize = (uint32_t)c->vbv_size;
	}
	if (c->rc == 0) {
		cfg.rcParams.constQP.qpIntra = (uint32_t)c->const_qp;
		cfg.rcParams.constQP.qpInterP = (uint32_t)c->const_qp;
		cfg.rcParams.constQP.qpInterB = (uint32_t)c->const_qp;
	}
	if (c->qmax > 0) {
		cfg.rcParams.enableMinQP = 1;
		cfg.rcParams.enableMaxQP = 1;
		cfg.rcParams.minQP.qpIntra = (uint32_t)c->qmin;
		cfg.rcParams.minQP.qpInterP = (uint32_t)c->qmin;
		cfg.rcParams.minQP.qpInterB = (uint32_t)c->qmin;
		cfg.rcParams.maxQP.qpIntra = (uint32_t)c->qmax;
		cfg.rcParams.maxQP.qpInterP = (uint32_t)c->qmax;
		cfg.rcParams.maxQP.qpInterB = (uint32_t)c->qmax;
	}
	if (c->target_quality > 0) {
		cfg.rcParams.targetQuality = (uint8_t)c->target_quality;
	}

	NV_ENC_INITIALIZE_PARAMS ip;
	memset(&ip, 0, sizeof(ip));
	ip.version = NV_ENC_INITIALIZE_PARAMS_VER;
	ip.encodeGUID = codec;
	ip.presetGUID = preset;
	ip.tuningInfo = tuning;
	ip.encodeWidth = (uint32_t)c->width;
	ip.encodeHeight = (uint32_t)c->height;
	ip.darWidth = (uint32_t)c->width;
	ip.darHeight = (uint32_t)c->height;
	ip.frameRateNum = (uint32_t)c->fps;
	ip.frameRateDen = 1;
	ip.enablePTD = 1;
	ip.encodeConfig = &cfg;
	return fl->nvEncInitializeEncoder(enc, &ip);
}

static NVENCSTATUS register_resource(NV_ENCODE_API_FUNCTION_LIST *fl, void *enc,
		unsigned long long dptr, int w, int h, int pitch, int fmt, int usage, void **reg) {
	NV_ENC_REGISTER_RESOURCE rr;
	memset(&rr, 0, sizeof(rr));
	rr.version = NV_ENC_REGISTER_RESOURCE_VER;
	rr.resourceType = NV_ENC_INPUT_RESOURCE_TYPE_CUDADEVICEPTR;
	rr.resourceToRegister = (void *)(uintptr_t)dptr;
	rr.width = (uint32_t)w;
	rr.height = (uint32_t)h;
	rr.pitch = (uint32_t)pitch;
	rr.bufferFormat = (NV_ENC_BUFFER_FORMAT)fmt;
	rr.bufferUsage = (NV_ENC_BUFFER_USAGE)usage;
	NVENCSTATUS st = fl->nvEncRegisterResource(enc, &rr);
	if (st == NV_ENC_SUCCESS) {
		*reg = rr.registeredResource;
	}
	return st;
}

static NVENCSTATUS map_resource(NV_ENCODE_API_FUNCTION_LIST *fl, void *enc, void *reg, void **mapped) {
	NV_ENC_MAP_INPUT_RESOURCE mr;
	memset(&mr, 0, sizeof(mr));
	mr.version = NV_ENC_MAP_INPUT_RESOURCE_VER;
	mr.registeredResource = reg;
	NVENCSTATUS st = fl->nvEncMapInputResource(enc, &mr);
	if (st == NV_ENC_SUCCESS) {
		*mapped = mr.mappedResource;
	}
	return st;
}

static NVENCSTATUS unmap_resource(NV_ENCODE_API_FUNCTION_LIST *fl, void *enc, void *mapped) {
	return fl->nvEncUnmapInputResource(enc, (NV_ENC_INPUT_PTR)mapped);
}

static NVENCSTATUS unregister_resource(NV_ENCODE_API_FUNCTION_LIST *fl, void *enc, void *reg) {
	return fl->nvEncUnregisterResource(enc, (NV_ENC_REGISTERED_PTR)reg);
}

static NVENCSTATUS create_bitstream(NV_ENCODE_API_FUNCTION_LIST *fl, void *enc, void **buf) {
	NV_ENC_CREATE_BITSTREAM_BUFFER cb;
	memset(&cb, 0, sizeof(cb));
	cb.version = NV_ENC_CREATE_BITSTREAM_BUFFER_VER;
	NVENCSTATUS st = fl->nvEncCreateBitstreamBuffer(enc, &cb);
	if (st == NV_ENC_SUCCESS) {
		*buf = cb.bitstreamBuffer;
	}
	return st;
}

static NVENCSTATUS destroy_bitstream(NV_ENCODE_API_FUNCTION_LIST *fl, void *enc, void *buf) {
	return fl->nvEncDestroyBitstreamBuffer(enc, (NV_ENC_OUTPUT_PTR)buf);
}

static NVENCSTATUS encode_picture(NV_ENCODE_API_FUNCTION_LIST *fl, void *enc,
		void *in, void *out, int w, int h, int pitch, int fmt) {
	NV_ENC_PIC_PARAMS pp;
	memset(&pp, 0, sizeof(pp));
	pp.version = NV_ENC_PIC_PARAMS_VER;
	pp.pictureStruct = NV_ENC_PIC_STRUCT_FRAME;
	pp.inputBuffer = (NV_ENC_INPUT_PTR)in;
	pp.outputBitstream = (NV_ENC_OUTPUT_PTR)out;
	pp.bufferFmt = (NV_ENC_BUFFER_FORMAT)fmt;
	pp.inputWidth = (uint32_t)w;
	pp.inputHeight = (uint32_t)h;
	pp.inputPitch = (uint32_t)pitch;
	return fl->nvEncEncodePicture(enc, &pp);
}

static NVENCSTATUS send_eos(NV_ENCODE_API_FUNCTION_LIST *fl, void *enc) {
	NV_ENC_PIC_PARAMS pp;
	memset(&pp, 0, sizeof(pp));
	pp.version = NV_ENC_PIC_PARAMS_VER;
	pp.encodePicFlags = NV_ENC_PIC_FLAG_EOS;
	return fl->nvEncEncodePicture(enc, &pp);
}

static NVENCSTATUS lock_bitstream(NV_ENCODE_API_FUNCTION_LIST *fl, void *enc, void *buf,
		void **data, unsigned int *size, int *picType) {
	NV_ENC_LOCK_BITSTREAM lb;
	memset(&lb, 0, sizeof(lb));
	lb.version = NV_ENC_LOCK_BITSTREAM_VER;
	lb.outputBitstream = buf;
	NVENCSTATUS st = fl->nvEncLockBitstream(enc, &lb);
	if (st != NV_ENC_SUCCESS) {
		return st;
	}
	*data = lb.bitstreamBufferPtr;
	*size = lb.bitstreamSizeInBytes;
	*picType = (int)lb.pictureType;
	return NV_ENC_SUCCESS;
}

static NVENCSTATUS unlock_bitstream(NV_ENCODE_API_FUNCTION_LIST *fl, void *enc, void *buf) {
	return fl->nvEncUnlockBitstream(enc, (NV_ENC_OUTPUT_PTR)buf);
}

static NVENCSTATUS destroy_encoder(NV_ENCODE_API_FUNCTION_LIST *fl, void *enc) {
	return fl->nvEncDestroyEncoder(enc);
}

static const char *last_error(NV_ENCODE_API_FUNCTION_LIST *fl, void *enc) {
	return fl->nvEncGetLastErrorString(enc);
}

static int codec_supported(NV_ENCODE_API_FUNCTION_LIST *fl, void *enc, int codec) {
	uint32_t count = 0, got = 0;
	GUID guids[32];
	if (fl->nvEncGetEncodeGUIDCount(enc, &count) != NV_ENC_SUCCESS || count == 0) {
		return 0;
	}
	if (count > 32) {
		count = 32;
	}
	if (fl->nvEncGetEncodeGUIDs(enc, guids, count, &got) != NV_ENC_SUCCESS) {
		return 0;
	}
	GUID want = codec_guid(codec);
	for (uint32_t i = 0; i < got; i++) {
		if (memcmp(&guids[i], &want, sizeof(GUID)) == 0) {
			return 1;
		}
	}
	return 0;
}

static int get_cap(NV_ENCODE_API_FUNCTION_LIST *fl, void *enc, int codec, int cap) {
	NV_ENC_CAPS_PARAM cp;
	int v = 0;
	memset(&cp, 0, sizeof(cp));
	cp.version = NV_ENC_CAPS_PARAM_VER;
	cp.capsToQuery = (NV_ENC_CAPS)cap;
	if (fl->nvEncGetEncodeCaps(enc, codec_guid(codec), &cp, &v) != NV_ENC_SUCCESS) {
		return 0;
	}
	return v;
}
*/
import "C"

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/zsiec/stillenc/internal/cuda"
	"github.com/zsiec/stillenc/internal/encoder"
)

// slot is one device-resident input buffer plus its output counterpart.
// The session cycles through slots in submission order; a slot's input
// stays mapped from submission until its bitstream is retrieved.
type slot struct {
	mem   cuda.DevicePtr
	pitch int

	inReg    unsafe.Pointer
	inMapped unsafe.Pointer

	// lock-path output
	bits unsafe.Pointer

	// device-memory output
	outMem    cuda.DevicePtr
	outReg    unsafe.Pointer
	outMapped unsafe.Pointer
	outSize   int
}

// Session is the hardware encoder session. It owns the CUDA input slots
// and implements encoder.Session. The session operates synchronously and
// reports packets with the output latency the driver imposes: the first
// outputDelay submissions return no packets, and Flush drains the rest.
type Session struct {
	log *slog.Logger
	ctx *cuda.Context

	fl  C.NV_ENCODE_API_FUNCTION_LIST
	enc unsafe.Pointer

	width  int
	height int
	format encoder.BufferFormat
	cfmt   C.int
	vidmem bool

	slots       []slot
	outputDelay int
	toSend      int
	got         int

	flushed bool
	closed  bool
}

var profileCodes = map[string]int{
	"auto": 0, "baseline": 1, "main": 2, "high": 3, "high444": 4,
	"main10": 5, "frext": 6,
}

var tuningCodes = map[string]int{
	"hq": 0, "lowlatency": 1, "ultralowlatency": 2, "lossless": 3,
}

var rcCodes = map[string]int{"constqp": 0, "vbr": 1, "cbr": 2}

func bufferFormatC(f encoder.BufferFormat) C.int {
	switch f {
	case encoder.FormatIYUV:
		return C.NV_ENC_BUFFER_FORMAT_IYUV
	case encoder.FormatNV12:
		return C.NV_ENC_BUFFER_FORMAT_NV12
	case encoder.FormatYV12:
		return C.NV_ENC_BUFFER_FORMAT_YV12
	case encoder.FormatYUV444:
		return C.NV_ENC_BUFFER_FORMAT_YUV444
	case encoder.FormatP010:
		return C.NV_ENC_BUFFER_FORMAT_YUV420_10BIT
	case encoder.FormatYUV444P16:
		return C.NV_ENC_BUFFER_FORMAT_YUV444_10BIT
	case encoder.FormatBGRA:
		return C.NV_ENC_BUFFER_FORMAT_ARGB
	case encoder.FormatBGRA10:
		return C.NV_ENC_BUFFER_FORMAT_ARGB10
	case encoder.FormatAYUV:
		return C.NV_ENC_BUFFER_FORMAT_AYUV
	case encoder.FormatABGR:
		return C.NV_ENC_BUFFER_FORMAT_ABGR
	case encoder.FormatABGR10:
		return C.NV_ENC_BUFFER_FORMAT_ABGR10
	}
	return C.NV_ENC_BUFFER_FORMAT_UNDEFINED
}

func (s *Session) nvErr(op string, st C.NVENCSTATUS) error {
	if s.enc != nil {
		if msg := C.last_error(&s.fl, s.enc); msg != nil && *msg != 0 {
			return fmt.Errorf("%s: status %d: %s", op, int(st), C.GoString(msg))
		}
	}
	return fmt.Errorf("%s: status %d", op, int(st))
}

// New opens an encoder session on ctx and prepares it for frames of the
// given geometry. With outputInVidMem the encoder writes bitstreams to
// registered device buffers and the session copies them back itself,
// instead of using driver-managed host bitstream buffers.
func New(ctx *cuda.Context, width, height int, format encoder.BufferFormat,
	cfg encoder.Config, outputInVidMem bool, log *slog.Logger) (*Session, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cf := bufferFormatC(format)
	if cf == C.NV_ENC_BUFFER_FORMAT_UNDEFINED {
		return nil, fmt.Errorf("buffer format %s is not supported by the encoder", format)
	}

	if st := C.check_api_version(); st != C.NV_ENC_SUCCESS {
		return nil, fmt.Errorf("encoder driver too old for API %d.%d (status %d)",
			C.NVENCAPI_MAJOR_VERSION, C.NVENCAPI_MINOR_VERSION, int(st))
	}

	s := &Session{
		log:    log.With("component", "nvenc"),
		ctx:    ctx,
		width:  width,
		height: height,
		format: format,
		cfmt:   cf,
		vidmem: outputInVidMem,
	}
	if st := C.open_api(&s.fl); st != C.NV_ENC_SUCCESS {
		return nil, s.nvErr("create encoder API instance", st)
	}
	if st := C.open_session(&s.fl, ctx.Handle(), &s.enc); st != C.NV_ENC_SUCCESS {
		return nil, s.nvErr("open encode session", st)
	}

	codec := 0
	if cfg.Codec == encoder.CodecHEVC {
		codec = 1
	}
	preset := int(cfg.Preset[1] - '0')
	yuv444 := 0
	if format == encoder.FormatYUV444 || format == encoder.FormatYUV444P16 {
		yuv444 = 1
	}
	tenBit := 0
	if format.TenBit() {
		tenBit = 1
	}
	cc := C.enc_cfg{
		codec:          C.int(codec),
		profile:        C.int(profileCodes[cfg.Profile]),
		preset:         C.int(preset),
		tuning:         C.int(tuningCodes[cfg.Tuning]),
		rc:             C.int(rcCodes[cfg.RateControl]),
		width:          C.int(width),
		height:         C.int(height),
		fps:            C.int(cfg.FPS),
		gop:            C.int(cfg.GOPLength),
		bframes:        C.int(cfg.BFrames),
		avg_bitrate:    C.int(cfg.AverageBitrate),
		max_bitrate:    C.int(cfg.MaxBitrate),
		vbv_size:       C.int(cfg.VBVBufferSize),
		const_qp:       C.int(cfg.ConstQP),
		qmin:           C.int(cfg.QMin),
		qmax:           C.int(cfg.QMax),
		target_quality: C.int(cfg.TargetQuality),
		ten_bit:        C.int(tenBit),
		yuv444:         C.int(yuv444),
	}
	if st := C.init_encoder(&s.fl, s.enc, &cc); st != C.NV_ENC_SUCCESS {
		err := s.nvErr("initialize encoder", st)
		C.destroy_encoder(&s.fl, s.enc)
		return nil, err
	}

	numSlots := cfg.BFrames + 4
	s.outputDelay = numSlots - 1
	if err := s.allocSlots(numSlots); err != nil {
		s.teardown()
		return nil, err
	}

	s.log.Debug("session opened",
		"codec", string(cfg.Codec), "preset", cfg.Preset, "tuning", cfg.Tuning,
		"format", format.String(), "width", width, "height", height,
		"slots", numSlots, "vidmem", outputInVidMem)
	return s, nil
}

func (s *Session) allocSlots(n int) error {
	rowBytes := lumaRowBytes(s.format, s.width)
	rows := allocRows(s.format, s.height)
	s.slots = make([]slot, n)
	for i := range s.slots {
		sl := &s.slots[i]
		mem, pitch, err := s.ctx.AllocPitch(rowBytes, rows)
		if err != nil {
			return fmt.Errorf("allocate input slot %d: %w", i, err)
		}
		sl.mem, sl.pitch = mem, pitch

		st := C.register_resource(&s.fl, s.enc, C.ulonglong(mem),
			C.int(s.width), C.int(s.height), C.int(pitch), s.cfmt,
			C.NV_ENC_INPUT_IMAGE, &sl.inReg)
		if st != C.NV_ENC_SUCCESS {
			return s.nvErr(fmt.Sprintf("register input slot %d", i), st)
		}

		if !s.vidmem {
			if st := C.create_bitstream(&s.fl, s.enc, &sl.bits); st != C.NV_ENC_SUCCESS {
				return s.nvErr(fmt.Sprintf("create bitstream buffer %d", i), st)
			}
			continue
		}

		// Device output buffers hold NV_ENC_ENCODE_OUT_PARAMS followed by
		// the bitstream; a whole uncompressed frame is a safe upper bound.
		sl.outSize = int(C.sizeof_NV_ENC_ENCODE_OUT_PARAMS) + 4*s.width*s.height
		out, err := s.ctx.AllocLinear(sl.outSize)
		if err != nil {
			return fmt.Errorf("allocate output slot %d: %w", i, err)
		}
		sl.outMem = out
		st = C.register_resource(&s.fl, s.enc, C.ulonglong(out),
			C.int(sl.outSize), 1, C.int(sl.outSize), C.NV_ENC_BUFFER_FORMAT_U8,
			C.NV_ENC_OUTPUT_BITSTREAM, &sl.outReg)
		if st != C.NV_ENC_SUCCESS {
			return s.nvErr(fmt.Sprintf("register output slot %d", i), st)
		}
	}
	return nil
}

// Encode copies src into the next input slot and submits it. Packets for
// earlier submissions are returned once the encoder's output latency has
// elapsed; an empty return is normal while the pipeline fills.
func (s *Session) Encode(src *encoder.Frame) ([]encoder.Packet, error) {
	if s.closed {
		return nil, encoder.ErrSessionClosed
	}
	if s.flushed {
		return nil, errors.New("encode after flush")
	}
	if src.Format != s.format || src.Width != s.width || src.Height != s.height {
		return nil, fmt.Errorf("frame is %s %dx%d, session expects %s %dx%d",
			src.Format, src.Width, src.Height, s.format, s.width, s.height)
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}

	sl := &s.slots[s.toSend%len(s.slots)]
	if err := s.uploadFrame(sl, src); err != nil {
		return nil, err
	}

	if st := C.map_resource(&s.fl, s.enc, sl.inReg, &sl.inMapped); st != C.NV_ENC_SUCCESS {
		return nil, s.nvErr("map input", st)
	}
	out := sl.bits
	if s.vidmem {
		if st := C.map_resource(&s.fl, s.enc, sl.outReg, &sl.outMapped); st != C.NV_ENC_SUCCESS {
			return nil, s.nvErr("map output", st)
		}
		out = sl.outMapped
	}

	st := C.encode_picture(&s.fl, s.enc, sl.inMapped, out,
		C.int(s.width), C.int(s.height), C.int(sl.pitch), s.cfmt)
	if st != C.NV_ENC_SUCCESS && st != C.NV_ENC_ERR_NEED_MORE_INPUT {
		return nil, s.nvErr("encode picture", st)
	}
	s.toSend++

	// NEED_MORE_INPUT means nothing is retrievable yet even past the
	// nominal latency window.
	if st == C.NV_ENC_ERR_NEED_MORE_INPUT {
		return nil, nil
	}
	return s.drainTo(s.toSend - s.outputDelay)
}

// uploadFrame copies the packed host planes into the slot's pitched
// device allocation.
func (s *Session) uploadFrame(sl *slot, src *encoder.Frame) error {
	planes := s.format.Planes(s.width, s.height)
	if err := s.ctx.CopyToDevice2D(sl.mem, sl.pitch, src.PlaneData(0),
		planes[0].WidthBytes, planes[0].Height); err != nil {
		return fmt.Errorf("upload luma: %w", err)
	}
	cp := chromaPitch(s.format, sl.pitch)
	for i, off := range chromaOffsets(s.format, sl.pitch, s.height) {
		p := planes[i+1]
		dst := cuda.DevicePtr(uintptr(sl.mem) + uintptr(off))
		if err := s.ctx.CopyToDevice2D(dst, cp, src.PlaneData(i+1), p.WidthBytes, p.Height); err != nil {
			return fmt.Errorf("upload chroma plane %d: %w", i, err)
		}
	}
	return nil
}

// drainTo retrieves completed submissions up to (but not including) limit.
func (s *Session) drainTo(limit int) ([]encoder.Packet, error) {
	var pkts []encoder.Packet
	for s.got < limit {
		pkt, err := s.retrieve(&s.slots[s.got%len(s.slots)], uint32(s.got))
		if err != nil {
			return pkts, err
		}
		pkts = append(pkts, pkt)
		s.got++
	}
	return pkts, nil
}

func (s *Session) retrieve(sl *slot, idx uint32) (encoder.Packet, error) {
	if s.vidmem {
		return s.retrieveVidMem(sl, idx)
	}

	var (
		data    unsafe.Pointer
		size    C.uint
		picType C.int
	)
	if st := C.lock_bitstream(&s.fl, s.enc, sl.bits, &data, &size, &picType); st != C.NV_ENC_SUCCESS {
		return encoder.Packet{}, s.nvErr("lock bitstream", st)
	}
	buf := C.GoBytes(data, C.int(size))
	if st := C.unlock_bitstream(&s.fl, s.enc, sl.bits); st != C.NV_ENC_SUCCESS {
		return encoder.Packet{}, s.nvErr("unlock bitstream", st)
	}
	if err := s.releaseInput(sl); err != nil {
		return encoder.Packet{}, err
	}
	key := picType == C.NV_ENC_PIC_TYPE_IDR || picType == C.NV_ENC_PIC_TYPE_I
	return encoder.Packet{Data: buf, PictureIndex: idx, Keyframe: key}, nil
}

// retrieveVidMem synchronizes with the encoder through a lock on the
// mapped device output, then copies the size header and bitstream back to
// host memory itself. Picture type is not reported on this path.
func (s *Session) retrieveVidMem(sl *slot, idx uint32) (encoder.Packet, error) {
	var (
		data    unsafe.Pointer
		size    C.uint
		picType C.int
	)
	if st := C.lock_bitstream(&s.fl, s.enc, sl.outMapped, &data, &size, &picType); st != C.NV_ENC_SUCCESS {
		return encoder.Packet{}, s.nvErr("lock device bitstream", st)
	}
	if st := C.unlock_bitstream(&s.fl, s.enc, sl.outMapped); st != C.NV_ENC_SUCCESS {
		return encoder.Packet{}, s.nvErr("unlock device bitstream", st)
	}

	hdrSize := int(C.sizeof_NV_ENC_ENCODE_OUT_PARAMS)
	hdr := make([]byte, hdrSize)
	if err := s.ctx.CopyFromDevice(hdr, sl.outMem); err != nil {
		return encoder.Packet{}, fmt.Errorf("read output header: %w", err)
	}
	n := int(binary.LittleEndian.Uint32(hdr[4:8]))
	if n < 0 || n > sl.outSize-hdrSize {
		return encoder.Packet{}, fmt.Errorf("device output reports %d bytes, buffer holds %d", n, sl.outSize-hdrSize)
	}
	buf := make([]byte, n)
	if err := s.ctx.CopyFromDevice(buf, cuda.DevicePtr(uintptr(sl.outMem)+uintptr(hdrSize))); err != nil {
		return encoder.Packet{}, fmt.Errorf("read output bitstream: %w", err)
	}

	if st := C.unmap_resource(&s.fl, s.enc, sl.outMapped); st != C.NV_ENC_SUCCESS {
		return encoder.Packet{}, s.nvErr("unmap output", st)
	}
	sl.outMapped = nil
	if err := s.releaseInput(sl); err != nil {
		return encoder.Packet{}, err
	}
	return encoder.Packet{Data: buf, PictureIndex: idx}, nil
}

func (s *Session) releaseInput(sl *slot) error {
	if sl.inMapped == nil {
		return nil
	}
	if st := C.unmap_resource(&s.fl, s.enc, sl.inMapped); st != C.NV_ENC_SUCCESS {
		return s.nvErr("unmap input", st)
	}
	sl.inMapped = nil
	return nil
}

// Flush sends end of stream and drains every submission still in flight.
func (s *Session) Flush() ([]encoder.Packet, error) {
	if s.closed {
		return nil, encoder.ErrSessionClosed
	}
	if s.flushed {
		return nil, errors.New("session already flushed")
	}
	s.flushed = true
	if st := C.send_eos(&s.fl, s.enc); st != C.NV_ENC_SUCCESS {
		return nil, s.nvErr("send end of stream", st)
	}
	return s.drainTo(s.toSend)
}

// Close releases device buffers and destroys the session. Safe to call
// after a failed Encode or Flush.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.teardown()
}

func (s *Session) teardown() error {
	var errs []error
	for i := range s.slots {
		sl := &s.slots[i]
		if sl.inMapped != nil {
			C.unmap_resource(&s.fl, s.enc, sl.inMapped)
			sl.inMapped = nil
		}
		if sl.outMapped != nil {
			C.unmap_resource(&s.fl, s.enc, sl.outMapped)
			sl.outMapped = nil
		}
		if sl.inReg != nil {
			if st := C.unregister_resource(&s.fl, s.enc, sl.inReg); st != C.NV_ENC_SUCCESS {
				errs = append(errs, s.nvErr("unregister input", st))
			}
		}
		if sl.outReg != nil {
			if st := C.unregister_resource(&s.fl, s.enc, sl.outReg); st != C.NV_ENC_SUCCESS {
				errs = append(errs, s.nvErr("unregister output", st))
			}
		}
		if sl.bits != nil {
			if st := C.destroy_bitstream(&s.fl, s.enc, sl.bits); st != C.NV_ENC_SUCCESS {
				errs = append(errs, s.nvErr("destroy bitstream buffer", st))
			}
		}
		if sl.mem != 0 {
			if err := s.ctx.Free(sl.mem); err != nil {
				errs = append(errs, err)
			}
		}
		if sl.outMem != 0 {
			if err := s.ctx.Free(sl.outMem); err != nil {
				errs = append(errs, err)
			}
		}
	}
	s.slots = nil
	if s.enc != nil {
		if st := C.destroy_encoder(&s.fl, s.enc); st != C.NV_ENC_SUCCESS {
			errs = append(errs, s.nvErr("destroy encoder", st))
		}
		s.enc = nil
	}
	return errors.Join(errs...)
}

// QueryCaps opens a throwaway session on the given GPU and reads its
// capability table for both codecs.
func QueryCaps(ordinal int) (encoder.DeviceCaps, error) {
	dev, err := cuda.GetDevice(ordinal)
	if err != nil {
		return encoder.DeviceCaps{}, err
	}
	name, err := dev.Name()
	if err != nil {
		return encoder.DeviceCaps{}, err
	}
	ctx, err := cuda.NewContext(dev)
	if err != nil {
		return encoder.DeviceCaps{}, err
	}
	defer ctx.Destroy()

	var fl C.NV_ENCODE_API_FUNCTION_LIST
	if st := C.open_api(&fl); st != C.NV_ENC_SUCCESS {
		return encoder.DeviceCaps{}, fmt.Errorf("create encoder API instance: status %d", int(st))
	}
	var enc unsafe.Pointer
	if st := C.open_session(&fl, ctx.Handle(), &enc); st != C.NV_ENC_SUCCESS {
		return encoder.DeviceCaps{}, fmt.Errorf("open encode session on GPU %d: status %d", ordinal, int(st))
	}
	defer C.destroy_encoder(&fl, enc)

	dc := encoder.DeviceCaps{Ordinal: ordinal, Name: name}
	dc.H264 = codecCaps(&fl, enc, 0)
	dc.HEVC = codecCaps(&fl, enc, 1)
	return dc, nil
}

func codecCaps(fl *C.NV_ENCODE_API_FUNCTION_LIST, enc unsafe.Pointer, codec int) encoder.CodecCaps {
	if C.codec_supported(fl, enc, C.int(codec)) == 0 {
		return encoder.CodecCaps{}
	}
	cc := C.int(codec)
	caps := encoder.CodecCaps{
		Supported: true,
		YUV444:    C.get_cap(fl, enc, cc, C.NV_ENC_CAPS_SUPPORT_YUV444_ENCODE) != 0,
		TenBit:    C.get_cap(fl, enc, cc, C.NV_ENC_CAPS_SUPPORT_10BIT_ENCODE) != 0,
		Lossless:  C.get_cap(fl, enc, cc, C.NV_ENC_CAPS_SUPPORT_LOSSLESS_ENCODE) != 0,
		MEOnly:    C.get_cap(fl, enc, cc, C.NV_ENC_CAPS_SUPPORT_MEONLY_MODE) != 0,
		MaxWidth:  int(C.get_cap(fl, enc, cc, C.NV_ENC_CAPS_WIDTH_MAX)),
		MaxHeight: int(C.get_cap(fl, enc, cc, C.NV_ENC_CAPS_HEIGHT_MAX)),
	}
	if codec == 1 {
		caps.SAO = C.get_cap(fl, enc, cc, C.NV_ENC_CAPS_SUPPORT_SAO) != 0
	}
	return caps
}
