package blackbox

import "fmt"

// step is one read of the decode plan: a single field, or a whole tag group.
type step struct {
	enc   Encoding
	first int
	count int
}

// Schema is the ordered field layout of one frame type together with its
// decode plan.
type Schema struct {
	Type   FrameType
	Fields []FieldDef

	steps []step
	plans []predictorPlan
	index map[string]int

	// readsHistory is set when a predictor needs earlier frames of the same
	// group, readsMainTime when one needs the last main frame time.
	readsHistory  bool
	readsMainTime bool
}

func (s *Schema) Names() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Index returns the position of the named field, or -1.
func (s *Schema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// fieldLists is the raw attribute lists declared for one frame type.
type fieldLists struct {
	names      []string
	signed     []int64
	predictors []int64
	encodings  []int64
}

func buildSchema(ft FrameType, lists fieldLists, meta *Metadata, intra *Schema) (*Schema, error) {
	n := len(lists.names)
	if n == 0 {
		return nil, fmt.Errorf("%w: frame %c declares no field names", ErrHeaderMalformed, ft)
	}
	if lists.signed != nil && len(lists.signed) != n {
		return nil, fmt.Errorf("%w: frame %c has %d names but %d signed flags", ErrHeaderMalformed, ft, n, len(lists.signed))
	}
	if len(lists.predictors) != n {
		return nil, fmt.Errorf("%w: frame %c has %d names but %d predictors", ErrHeaderMalformed, ft, n, len(lists.predictors))
	}
	if len(lists.encodings) != n {
		return nil, fmt.Errorf("%w: frame %c has %d names but %d encodings", ErrHeaderMalformed, ft, n, len(lists.encodings))
	}

	s := &Schema{
		Type:   ft,
		Fields: make([]FieldDef, n),
		plans:  make([]predictorPlan, n),
		index:  make(map[string]int, n),
	}
	for i, name := range lists.names {
		enc := Encoding(lists.encodings[i])
		if lists.encodings[i] < 0 || lists.encodings[i] > 255 || !knownEncoding(enc, meta.DataVersion) {
			return nil, fmt.Errorf("%w: field %q uses encoding %d, unknown for data version %d", ErrHeaderMalformed, name, lists.encodings[i], meta.DataVersion)
		}
		if p := lists.predictors[i]; p < 0 || p > 0xFFFF {
			return nil, fmt.Errorf("%w: field %q uses unknown predictor %d", ErrHeaderMalformed, name, p)
		}
		s.Fields[i] = FieldDef{
			Name:      name,
			Signed:    lists.signed != nil && lists.signed[i] != 0,
			Encoding:  enc,
			Predictor: Predictor(lists.predictors[i]),
		}
		if _, dup := s.index[name]; !dup {
			s.index[name] = i
		}
	}

	for i := 0; i < n; {
		enc := s.Fields[i].Encoding
		count := 1
		switch size := enc.groupSize(); enc {
		case EncodingTag8_8SVB:
			for i+count < n && count < size && s.Fields[i+count].Encoding == enc {
				count++
			}
		case EncodingTag2_3S32, EncodingTag8_4S16:
			if i+size > n {
				return nil, fmt.Errorf("%w: frame %c field %q starts a %s group of %d past the last field", ErrHeaderMalformed, ft, s.Fields[i].Name, enc, size)
			}
			for j := i + 1; j < i+size; j++ {
				if s.Fields[j].Encoding != enc {
					return nil, fmt.Errorf("%w: frame %c field %q breaks a %s group", ErrHeaderMalformed, ft, s.Fields[j].Name, enc)
				}
			}
			count = size
		}
		for j := i; j < i+count; j++ {
			s.Fields[j].Group = len(s.steps)
		}
		s.steps = append(s.steps, step{enc: enc, first: i, count: count})
		i += count
	}

	for i, f := range s.Fields {
		plan, err := resolvePredictor(ft, i, f, s, meta, intra)
		if err != nil {
			return nil, err
		}
		s.plans[i] = plan
		switch f.Predictor {
		case PredictorPrevious, PredictorStraightLine, PredictorAverage2, PredictorIncrement:
			s.readsHistory = true
		case PredictorLastMainFrameTime:
			s.readsMainTime = true
		}
	}
	return s, nil
}

func resolvePredictor(ft FrameType, i int, f FieldDef, s *Schema, meta *Metadata, intra *Schema) (predictorPlan, error) {
	plan := predictorPlan{kind: f.Predictor, sibling: -1}
	switch f.Predictor {
	case PredictorZero, PredictorPrevious, PredictorStraightLine, PredictorAverage2,
		PredictorIncrement, PredictorHomeCoord:
	case PredictorMinThrottle:
		v, ok := meta.Value("minthrottle")
		if !ok {
			return plan, fmt.Errorf("%w: field %q predicts from missing header minthrottle", ErrHeaderMalformed, f.Name)
		}
		plan.constant = v
	case PredictorVBatRef:
		v, ok := meta.Value("vbatref")
		if !ok {
			return plan, fmt.Errorf("%w: field %q predicts from missing header vbatref", ErrHeaderMalformed, f.Name)
		}
		plan.constant = v
	case PredictorMinMotor:
		out, ok := meta.List("motorOutput")
		if !ok || len(out) == 0 {
			return plan, fmt.Errorf("%w: field %q predicts from missing header motorOutput", ErrHeaderMalformed, f.Name)
		}
		plan.constant = out[0]
	case Predictor1500:
		plan.constant = 1500
	case PredictorMotor0:
		idx := s.Index("motor[0]")
		if idx < 0 || idx >= i {
			return plan, fmt.Errorf("%w: field %q predicts from motor[0] which does not precede it", ErrHeaderMalformed, f.Name)
		}
		plan.sibling = idx
	case PredictorLastMainFrameTime:
		main := intra
		if ft == FrameIntra {
			main = s
		}
		if main == nil || main.Index("time") < 0 {
			return plan, fmt.Errorf("%w: field %q predicts from a main frame time that is not logged", ErrHeaderMalformed, f.Name)
		}
	default:
		return plan, fmt.Errorf("%w: field %q uses unknown predictor %d", ErrHeaderMalformed, f.Name, uint16(f.Predictor))
	}
	return plan, nil
}
