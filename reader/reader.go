package reader

import (
	"context"
	"encoding/binary"
	"errors"

	"go.uber.org/zap"

	"github.com/bcio/bitcode/bcerrors"
	"github.com/bcio/bitcode/bitstream"
	"github.com/bcio/bitcode/ir"
)

// Sentinel errors for signature sniffing.
var (
	ErrInvalidMagic  = errors.New("reader: invalid bitcode signature")
	ErrInvalidLength = errors.New("reader: byte length not a multiple of 4")
	ErrBadWrapper    = errors.New("reader: invalid wrapper header")
)

// wrapperMagic is the little-endian magic of the optional wrapper
// header that some toolchains prepend to raw bitcode.
const wrapperMagic = 0x0B17C0DE

// Options configures decoding.
type Options struct {
	// Lazy defers function bodies; they are decoded on demand through
	// the module's materializer.
	Lazy bool

	// Logger receives debug-level decode progress. Defaults to a no-op
	// logger.
	Logger *zap.Logger
}

type initRef struct {
	global ir.User // *ir.GlobalVariable or *ir.Alias
	valID  int
}

type blockAddrRef struct {
	blockIdx int
	fwdRef   *ir.Placeholder
}

// moduleReader decodes one bitcode stream into one module. It survives
// the initial parse when lazy decoding is requested, serving as the
// module's materializer.
type moduleReader struct {
	bs  *bitstream.Reader
	m   *ir.Module
	log *zap.Logger

	typeList     []*ir.Type
	pendingName  string
	vl           valueList
	mdl          mdValueList
	mdKindMap    map[uint64]uint32
	sectionTable []string
	gcTable      []string

	globalInits []initRef
	aliasInits  []initRef
	namedMDRefs []namedMDRef

	funcsWithBodies   []*ir.Function
	deferred          map[*ir.Function]uint64
	blockAddrFwdRefs  map[*ir.Function][]blockAddrRef
	upgraded          map[*ir.Function]*ir.Function
	seenValueSymtab   bool
	seenFirstBody     bool
	seenModule        bool
	lazy              bool
	nextUnreadBit     uint64
	moduleParseDone   bool
}

// Decode reads a complete module, materializing every function body.
func Decode(data []byte, opts Options) (*ir.Module, error) {
	m, err := DecodeLazy(data, opts)
	if err != nil {
		return nil, err
	}
	if err := m.Mat.MaterializeAll(context.Background()); err != nil {
		return nil, err
	}
	return m, nil
}

// DecodeLazy reads the module skeleton and defers function bodies. The
// returned module's Mat field loads them on demand.
func DecodeLazy(data []byte, opts Options) (*ir.Module, error) {
	log := opts.Logger
	if log == nil {
		log = Logger()
	}

	payload, err := stripWrapper(data)
	if err != nil {
		return nil, err
	}
	if len(payload)&3 != 0 {
		return nil, ErrInvalidLength
	}

	mr := &moduleReader{
		bs:               bitstream.NewReader(payload),
		m:                ir.NewModule(),
		log:              log,
		mdKindMap:        make(map[uint64]uint32),
		deferred:         make(map[*ir.Function]uint64),
		blockAddrFwdRefs: make(map[*ir.Function][]blockAddrRef),
		upgraded:         make(map[*ir.Function]*ir.Function),
		lazy:             opts.Lazy,
	}
	if err := mr.parseTopLevel(); err != nil {
		return nil, err
	}
	if !mr.seenModule {
		return nil, bcerrors.Malformed(bcerrors.PhaseModule, "MODULE", "no module block in stream")
	}
	mr.m.Mat = mr
	return mr.m, nil
}

// stripWrapper validates the optional wrapper header and returns the
// raw bitcode payload.
func stripWrapper(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, ErrInvalidMagic
	}
	if binary.LittleEndian.Uint32(data) != wrapperMagic {
		return data, nil
	}
	// Wrapper: magic, version, offset, size, cputype; all 32-bit LE.
	if len(data) < 20 {
		return nil, ErrBadWrapper
	}
	off := binary.LittleEndian.Uint32(data[8:])
	size := binary.LittleEndian.Uint32(data[12:])
	if uint64(off)+uint64(size) > uint64(len(data)) {
		return nil, ErrBadWrapper
	}
	return data[off : off+uint32(size)], nil
}

// checkSignature sniffs the 'BC' 0xC0DE magic at the cursor.
func (mr *moduleReader) checkSignature() error {
	want := []struct {
		bits uint
		val  uint64
	}{{8, 'B'}, {8, 'C'}, {4, 0x0}, {4, 0xC}, {4, 0xE}, {4, 0xD}}
	for _, w := range want {
		v, err := mr.bs.Read(w.bits)
		if err != nil || v != w.val {
			return ErrInvalidMagic
		}
	}
	return nil
}

// parseTopLevel walks the outermost block list. Abbrev definitions are
// not auto-processed here so that trailing archive padding can be
// recognized.
func (mr *moduleReader) parseTopLevel() error {
	if err := mr.checkSignature(); err != nil {
		return err
	}

	for {
		if mr.bs.AtEnd() {
			return nil
		}
		code, err := mr.bs.ReadAbbrevID()
		if err != nil {
			return bcerrors.Stream(mr.bs.BitOffset(), err)
		}
		switch code {
		case bitstream.EndBlockID:
			return nil
		case bitstream.EnterSubBlockID:
			blockID, err := mr.bs.ReadVBR(8)
			if err != nil {
				return bcerrors.Stream(mr.bs.BitOffset(), err)
			}
			switch blockID {
			case bitstream.BlockInfoBlockID:
				if err := mr.bs.ReadBlockInfo(); err != nil {
					return bcerrors.Malformed(bcerrors.PhaseStream, "BLOCKINFO", err.Error())
				}
			case moduleBlockID:
				if mr.seenModule {
					return bcerrors.Duplicate(bcerrors.PhaseModule, "module block", uint64(blockID))
				}
				mr.seenModule = true
				if err := mr.parseModule(false); err != nil {
					return err
				}
				if mr.lazy {
					return nil
				}
			default:
				if err := mr.bs.SkipBlock(); err != nil {
					return bcerrors.Stream(mr.bs.BitOffset(), err)
				}
			}
		default:
			// Archive tools may pad members with newlines. A width-2
			// abbrev ID 2 followed by 2|0x0a0a0a at the very end of the
			// stream is that padding.
			if mr.bs.AbbrevWidth() == 2 && code == 2 {
				if v, err := mr.bs.Read(6); err == nil && v == 2 {
					if v, err := mr.bs.Read(24); err == nil && v == 0x0a0a0a && mr.bs.AtEnd() {
						return nil
					}
				}
			}
			return bcerrors.Malformed(bcerrors.PhaseModule, "top-level", "record outside any block")
		}
	}
}

// parseModule reads the MODULE block. With resume set, the cursor is
// repositioned at the point where a lazy parse suspended.
func (mr *moduleReader) parseModule(resume bool) error {
	if resume {
		if err := mr.bs.Seek(mr.nextUnreadBit); err != nil {
			return bcerrors.Stream(mr.nextUnreadBit, err)
		}
	} else if err := mr.bs.EnterSubBlock(moduleBlockID); err != nil {
		return bcerrors.Stream(mr.bs.BitOffset(), err)
	}

	for {
		ent, err := mr.bs.Advance()
		if err != nil {
			return bcerrors.Stream(mr.bs.BitOffset(), err)
		}
		switch ent.Kind {
		case bitstream.EntryEndBlock:
			mr.moduleParseDone = true
			return mr.globalCleanup()

		case bitstream.EntrySubBlock:
			if err := mr.parseModuleSubBlock(ent.ID); err != nil {
				return err
			}
			if mr.lazy && mr.seenValueSymtab && ent.ID == functionBlockID {
				mr.nextUnreadBit = mr.bs.BitOffset()
				return nil
			}

		case bitstream.EntryRecord:
			code, rec, err := mr.bs.ReadRecord(ent.ID)
			if err != nil {
				return bcerrors.Stream(mr.bs.BitOffset(), err)
			}
			if err := mr.parseModuleRecord(code, rec); err != nil {
				return err
			}
		}
	}
}

func (mr *moduleReader) parseModuleSubBlock(blockID uint64) error {
	switch blockID {
	case bitstream.BlockInfoBlockID:
		if err := mr.bs.ReadBlockInfo(); err != nil {
			return bcerrors.Malformed(bcerrors.PhaseModule, "BLOCKINFO", err.Error())
		}
		return nil
	case paramAttrBlockID:
		return mr.parseAttributeBlock()
	case typeBlockIDNew:
		return mr.parseTypeTable()
	case typeBlockIDOld:
		return mr.parseOldTypeTable()
	case typeSymtabBlockOld:
		return mr.parseOldTypeSymbolTable()
	case valueSymtabBlockID:
		if err := mr.parseValueSymbolTable(nil); err != nil {
			return err
		}
		mr.seenValueSymtab = true
		return nil
	case constantsBlockID:
		if err := mr.parseConstants(); err != nil {
			return err
		}
		return mr.resolveGlobalAndAliasInits()
	case metadataBlockID:
		return mr.parseMetadata()
	case functionBlockID:
		if !mr.seenFirstBody {
			reverse(mr.funcsWithBodies)
			if err := mr.globalCleanup(); err != nil {
				return err
			}
			mr.seenFirstBody = true
		}
		return mr.rememberAndSkipFunctionBody()
	default:
		return mr.skipOrStream(mr.bs.SkipBlock())
	}
}

func (mr *moduleReader) skipOrStream(err error) error {
	if err != nil {
		return bcerrors.Stream(mr.bs.BitOffset(), err)
	}
	return nil
}

func (mr *moduleReader) parseModuleRecord(code uint64, rec []uint64) error {
	switch code {
	case moduleCodeVersion:
		if len(rec) < 1 {
			return bcerrors.InvalidRecord(bcerrors.PhaseModule, "MODULE", code, "missing version")
		}
		if rec[0] != 0 {
			return bcerrors.Unsupported(bcerrors.PhaseModule, "module version other than 0")
		}
	case moduleCodeTriple:
		mr.m.TargetTriple = recordString(rec, 0)
	case moduleCodeDataLayout:
		mr.m.DataLayout = recordString(rec, 0)
	case moduleCodeASM:
		mr.m.ModuleAsm = recordString(rec, 0)
	case moduleCodeDepLib:
		mr.m.DepLibs = append(mr.m.DepLibs, recordString(rec, 0))
	case moduleCodeSectionName:
		s := recordString(rec, 0)
		mr.sectionTable = append(mr.sectionTable, s)
		mr.m.Sections = append(mr.m.Sections, s)
	case moduleCodeGCName:
		s := recordString(rec, 0)
		mr.gcTable = append(mr.gcTable, s)
		mr.m.GCNames = append(mr.m.GCNames, s)
	case moduleCodeGlobalVar:
		return mr.parseGlobalVarRecord(rec)
	case moduleCodeFunction:
		return mr.parseFunctionRecord(rec)
	case moduleCodeAlias:
		return mr.parseAliasRecord(rec)
	case moduleCodePurgeVals:
		if len(rec) < 1 || rec[0] > uint64(mr.vl.size()) {
			return bcerrors.InvalidRecord(bcerrors.PhaseModule, "MODULE", code, "bad purge count")
		}
		mr.vl.shrinkTo(int(rec[0]))
	}
	return nil
}

// typeByID returns the type table entry, creating an opaque named
// struct placeholder for forward references.
func (mr *moduleReader) typeByID(id uint64) *ir.Type {
	if id >= uint64(len(mr.typeList)) {
		return nil
	}
	if t := mr.typeList[id]; t != nil {
		return t
	}
	t := ir.OpaqueStructType("")
	mr.typeList[id] = t
	return t
}

// typeByIDOrNull is the legacy-table variant: it grows the table and
// reports nil for unseen entries instead of making placeholders.
func (mr *moduleReader) typeByIDOrNull(id uint64) *ir.Type {
	for uint64(len(mr.typeList)) <= id {
		mr.typeList = append(mr.typeList, nil)
	}
	return mr.typeList[id]
}

func recordString(rec []uint64, from int) string {
	b := make([]byte, 0, len(rec)-from)
	for _, v := range rec[from:] {
		b = append(b, byte(v))
	}
	return string(b)
}

func reverse(fns []*ir.Function) {
	for i, j := 0, len(fns)-1; i < j; i, j = i+1, j-1 {
		fns[i], fns[j] = fns[j], fns[i]
	}
}
