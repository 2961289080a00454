package heracles

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// The HERACLES wire format is fixed by the HERACLES toolchain. Its three
// proto files are described here so that messages can be built with
// dynamicpb without generated code.

const (
	commonPackage = "heracles.common"
	tracePackage  = "heracles.fhe_trace"
	dataPackage   = "heracles.data"
)

type fileSchema struct {
	files *protoregistry.Files

	trace       protoreflect.MessageDescriptor
	instruction protoreflect.MessageDescriptor
	fheContext  protoreflect.MessageDescriptor
	testVector  protoreflect.MessageDescriptor
	dataTrace   protoreflect.MessageDescriptor
}

var schema = mustBuildSchema()

func mustBuildSchema() (s *fileSchema) {

	files, err := protodesc.NewFiles(&descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{
			commonFile(),
			traceFile(),
			dataFile(),
		},
	})

	if err != nil {
		panic(fmt.Errorf("heracles: invalid schema: %w", err))
	}

	s = &fileSchema{files: files}

	s.trace = s.message(tracePackage + ".Trace")
	s.instruction = s.message(tracePackage + ".Instruction")
	s.fheContext = s.message(dataPackage + ".FHEContext")
	s.testVector = s.message(dataPackage + ".TestVector")
	s.dataTrace = s.message(dataPackage + ".DataTrace")

	return
}

func (s *fileSchema) message(name protoreflect.FullName) protoreflect.MessageDescriptor {
	d, err := s.files.FindDescriptorByName(name)
	if err != nil {
		panic(fmt.Errorf("heracles: %s: %w", name, err))
	}
	return d.(protoreflect.MessageDescriptor)
}

func commonFile() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("heracles/common.proto"),
		Package: proto.String(commonPackage),
		Syntax:  proto.String("proto3"),
		EnumType: []*descriptorpb.EnumDescriptorProto{
			enum("Scheme", "SCHEME_BGV", "SCHEME_CKKS", "SCHEME_BFV"),
		},
	}
}

func traceFile() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String("heracles/fhe_trace.proto"),
		Package:    proto.String(tracePackage),
		Syntax:     proto.String("proto3"),
		Dependency: []string{"heracles/common.proto"},
		EnumType: []*descriptorpb.EnumDescriptorProto{
			enum("ValueType", "DOUBLE", "FLOAT", "INT32", "INT64", "UINT32", "UINT64", "STRING"),
		},
		MessageType: []*descriptorpb.DescriptorProto{
			message("OperandObject",
				scalar("symbol_name", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("num_rns", 2, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
				scalar("order", 3, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
			),
			message("Parameter",
				scalar("value", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				typed("type", 2, descriptorpb.FieldDescriptorProto_TYPE_ENUM, "."+tracePackage+".ValueType"),
			),
			withMapEntry(
				message("OperandArgs",
					repeated(typed("srcs", 1, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, "."+tracePackage+".OperandObject")),
					repeated(typed("dests", 2, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, "."+tracePackage+".OperandObject")),
					repeated(typed("params", 3, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, "."+tracePackage+".OperandArgs.ParamsEntry")),
				),
				"ParamsEntry",
				scalar("key", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				typed("value", 2, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, "."+tracePackage+".Parameter"),
			),
			message("Instruction",
				scalar("op", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("evalop_name", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("plaintext_index", 3, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
				typed("args", 4, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, "."+tracePackage+".OperandArgs"),
			),
			message("Trace",
				typed("scheme", 1, descriptorpb.FieldDescriptorProto_TYPE_ENUM, "."+commonPackage+".Scheme"),
				scalar("n", 2, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
				scalar("key_rns_num", 3, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
				scalar("q_size", 4, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
				scalar("dnum", 5, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
				scalar("alpha", 6, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
				repeated(typed("instructions", 7, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, "."+tracePackage+".Instruction")),
			),
		},
	}
}

func dataFile() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String("heracles/data.proto"),
		Package:    proto.String(dataPackage),
		Syntax:     proto.String("proto3"),
		Dependency: []string{"heracles/common.proto"},
		MessageType: []*descriptorpb.DescriptorProto{
			message("CKKSInfo",
				repeated(scalar("scaling_factor_real", 1, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE)),
				repeated(scalar("scaling_factor_real_big", 2, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE)),
			),
			message("FHEContext",
				typed("scheme", 1, descriptorpb.FieldDescriptorProto_TYPE_ENUM, "."+commonPackage+".Scheme"),
				scalar("n", 2, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
				scalar("key_rns_num", 3, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
				scalar("alpha", 4, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
				scalar("digit_size", 5, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
				repeated(scalar("q_i", 6, descriptorpb.FieldDescriptorProto_TYPE_UINT64)),
				repeated(scalar("psi", 7, descriptorpb.FieldDescriptorProto_TYPE_UINT64)),
				scalar("q_size", 8, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
				scalar("has_ckks_info", 9, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
				typed("ckks_info", 10, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, "."+dataPackage+".CKKSInfo"),
			),
			message("RNSPolynomial",
				repeated(scalar("coeffs", 1, descriptorpb.FieldDescriptorProto_TYPE_UINT64)),
			),
			message("DCRTPoly",
				repeated(typed("rns_polys", 1, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, "."+dataPackage+".RNSPolynomial")),
				scalar("in_ntt_form", 2, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
			),
			message("Data",
				repeated(typed("dcrtpolys", 1, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, "."+dataPackage+".DCRTPoly")),
			),
			withMapEntry(
				message("TestVector",
					repeated(typed("sym_data_map", 1, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, "."+dataPackage+".TestVector.SymDataMapEntry")),
				),
				"SymDataMapEntry",
				scalar("key", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				typed("value", 2, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, "."+dataPackage+".Data"),
			),
			message("DataTrace",
				typed("context", 1, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, "."+dataPackage+".FHEContext"),
				typed("test_vector", 2, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, "."+dataPackage+".TestVector"),
			),
		},
	}
}

func enum(name string, values ...string) *descriptorpb.EnumDescriptorProto {
	e := &descriptorpb.EnumDescriptorProto{Name: proto.String(name)}
	for i, v := range values {
		e.Value = append(e.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(v),
			Number: proto.Int32(int32(i)),
		})
	}
	return e
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{
		Name:  proto.String(name),
		Field: fields,
	}
}

// withMapEntry adds to m the nested map entry type of one of its map fields.
func withMapEntry(m *descriptorpb.DescriptorProto, name string, key, value *descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	entry := message(name, key, value)
	entry.Options = &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)}
	m.NestedType = append(m.NestedType, entry)
	return m
}

func scalar(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Type:   typ.Enum(),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
	}
}

func typed(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type, typeName string) *descriptorpb.FieldDescriptorProto {
	f := scalar(name, number, typ)
	f.TypeName = proto.String(typeName)
	return f
}

func repeated(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}
