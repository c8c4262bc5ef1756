package backuppb

import (
	"context"

	"google.golang.org/grpc"
)

// BackupServer is the server-side of the backup service: one task,
// streamed as a sequence of BackupResponses terminated by a sentinel.
type BackupServer interface {
	Backup(*BackupRequest, Backup_BackupServer) error
}

// Backup_BackupServer is the server-side stream handle, matching the
// shape protoc-gen-go-grpc emits for a server-streaming RPC.
type Backup_BackupServer interface {
	Send(*BackupResponse) error
	grpc.ServerStream
}

type backupBackupServer struct {
	grpc.ServerStream
}

func (s *backupBackupServer) Send(m *BackupResponse) error {
	return s.ServerStream.SendMsg(m)
}

// BackupClient is the client-side of the backup service.
type BackupClient interface {
	Backup(ctx context.Context, in *BackupRequest, opts ...grpc.CallOption) (Backup_BackupClient, error)
}

// Backup_BackupClient is the client-side stream handle.
type Backup_BackupClient interface {
	Recv() (*BackupResponse, error)
	grpc.ClientStream
}

type backupBackupClient struct {
	grpc.ClientStream
}

func (c *backupBackupClient) Recv() (*BackupResponse, error) {
	var m = new(BackupResponse)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type backupClient struct {
	cc grpc.ClientConnInterface
}

// NewBackupClient builds a BackupClient over an established connection.
func NewBackupClient(cc grpc.ClientConnInterface) BackupClient {
	return &backupClient{cc: cc}
}

func (c *backupClient) Backup(ctx context.Context, in *BackupRequest, opts ...grpc.CallOption) (Backup_BackupClient, error) {
	stream, err := c.cc.NewStream(ctx, &_Backup_serviceDesc.Streams[0], "/chronokv.backup.Backup/Backup", opts...)
	if err != nil {
		return nil, err
	}
	var x = &backupBackupClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func _Backup_Backup_Handler(srv interface{}, stream grpc.ServerStream) error {
	var m = new(BackupRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(BackupServer).Backup(m, &backupBackupServer{stream})
}

// _Backup_serviceDesc mirrors the ServiceDesc protoc-gen-go-grpc would
// generate from a .proto defining one server-streaming Backup RPC.
var _Backup_serviceDesc = grpc.ServiceDesc{
	ServiceName: "chronokv.backup.Backup",
	HandlerType: (*BackupServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Backup",
			Handler:       _Backup_Backup_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "chronokv/backup.proto",
}

// RegisterBackupServer registers srv with a gRPC server.
func RegisterBackupServer(s grpc.ServiceRegistrar, srv BackupServer) {
	s.RegisterService(&_Backup_serviceDesc, srv)
}
